package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/srinipalli/beta-ui/backend/internal/config"
	"github.com/srinipalli/beta-ui/backend/internal/db"
	"github.com/srinipalli/beta-ui/backend/internal/http/handlers"
	"github.com/srinipalli/beta-ui/backend/internal/http/middleware"
	"github.com/srinipalli/beta-ui/backend/internal/service"
)

func Router(
	cfg config.Config,
	store *db.Store,
	chat *service.ChatService,
	assigner *service.AssignmentService,
	indexer *service.IndexerService,
	logger zerolog.Logger,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Chat:      chat,
		Assigner:  assigner,
		Indexer:   indexer,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/ticket_data", h.TicketData)
	r.GET("/tickets/:ticket_id", h.TicketDetails)
	r.PUT("/tickets/:ticket_id", h.UpdateTicket)
	r.POST("/chat", h.ChatQuery)

	admin := r.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/index/rebuild", h.RebuildIndex)
	}

	return r
}
