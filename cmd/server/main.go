package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/srinipalli/beta-ui/backend/internal/ai"
	"github.com/srinipalli/beta-ui/backend/internal/config"
	"github.com/srinipalli/beta-ui/backend/internal/db"
	httpapi "github.com/srinipalli/beta-ui/backend/internal/http"
	"github.com/srinipalli/beta-ui/backend/internal/service"
	"github.com/srinipalli/beta-ui/backend/internal/vector"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "ticket-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var embedder ai.Embedder
	if cfg.EmbedBaseURL == "" {
		embedder = ai.MockEmbedder{VectorDim: cfg.EmbedDim}
		logger.Info().Msg("using mock embedder")
	} else {
		embedder = ai.HTTPEmbedder{
			BaseURL:   cfg.EmbedBaseURL,
			Model:     cfg.EmbedModel,
			APIKey:    cfg.EmbedAPIKey,
			VectorDim: cfg.EmbedDim,
		}
	}

	var assistant ai.Assistant
	if cfg.AIBaseURL == "" {
		assistant = ai.MockAssistant{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock assistant")
	} else {
		assistant = ai.OpenAICompatAssistant{
			BaseURL:   cfg.AIBaseURL,
			Model:     cfg.AIModel,
			APIKey:    cfg.AIAPIKey,
			MaxTokens: cfg.AIMaxTokens,
		}
	}

	var collection vector.Collection
	if cfg.QdrantURL == "" {
		collection = vector.NewMemoryCollection()
		logger.Info().Msg("using in-memory vector collection")
	} else {
		collection, err = vector.NewQdrantCollection(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbedDim)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure vector collection")
		}
	}

	assigner := &service.AssignmentService{Store: store, Logger: logger}
	indexer := &service.IndexerService{Store: store, Embedder: embedder, Collection: collection, Logger: logger}
	chat := service.NewChatService(store, collection, embedder, assistant, logger, cfg.TicketIDPrefix)
	chat.HistoryLimit = cfg.ChatHistoryLimit

	router := httpapi.Router(cfg, store, chat, assigner, indexer, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
