package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/srinipalli/beta-ui/backend/internal/db"
	"github.com/srinipalli/beta-ui/backend/internal/service"
)

type Handler struct {
	Store     *db.Store
	Chat      *service.ChatService
	Assigner  *service.AssignmentService
	Indexer   *service.IndexerService
	Validator *validator.Validate
	Logger    zerolog.Logger
}

var triageLevels = []string{"L1", "L2", "L3", "L4", "L5"}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Dashboard ticket data
// @Tags tickets
// @Produce json
// @Success 200 {object} map[string]any
// @Router /ticket_data [get]
func (h *Handler) TicketData(c *gin.Context) {
	ctx := c.Request.Context()

	ids, err := h.Store.ProcessedTicketIDs(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list ticket ids", err.Error())
		return
	}
	summaries, err := h.Store.TicketSummaries(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load ticket table", err.Error())
		return
	}
	details, err := h.Store.TicketDetails(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load ticket details", err.Error())
		return
	}
	categories, err := h.Store.DistinctCategories(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load categories", err.Error())
		return
	}
	statuses, err := h.Store.DistinctStatuses(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load statuses", err.Error())
		return
	}
	assignees, err := h.Store.DistinctAssignees(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load assignees", err.Error())
		return
	}
	sources, err := h.Store.DistinctSources(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load sources", err.Error())
		return
	}

	if summaries == nil {
		summaries = []db.TicketSummary{}
	}
	if details == nil {
		details = []db.TicketDetail{}
	}

	c.JSON(http.StatusOK, gin.H{
		"ticket_ids":     orEmpty(ids),
		"ticket_count":   len(ids),
		"table_contents": summaries,
		"details":        details,
		// The triage list is the fixed enum, not derived from data.
		"distinct_triages":     triageLevels,
		"distinct_categories":  orEmpty(categories),
		"distinct_status":      orEmpty(statuses),
		"distinct_assigned_to": orEmpty(assignees),
		"distinct_sources":     orEmpty(sources),
	})
}

// @Summary Single ticket detail
// @Tags tickets
// @Produce json
// @Param ticket_id path string true "Ticket ID"
// @Success 200 {object} db.TicketDetail
// @Router /tickets/{ticket_id} [get]
func (h *Handler) TicketDetails(c *gin.Context) {
	detail, err := h.Store.GetTicketDetail(c.Request.Context(), c.Param("ticket_id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get ticket", err.Error())
		return
	}
	c.JSON(http.StatusOK, detail)
}

type TicketUpdateRequest struct {
	Triage   string `json:"triage" validate:"required"`
	Status   string `json:"status" validate:"required"`
	Category string `json:"category" validate:"required"`
}

// @Summary Update ticket classification
// @Tags tickets
// @Accept json
// @Produce json
// @Param ticket_id path string true "Ticket ID"
// @Success 200 {object} map[string]any
// @Router /tickets/{ticket_id} [put]
func (h *Handler) UpdateTicket(c *gin.Context) {
	ticketID := c.Param("ticket_id")

	var req TicketUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.UpdateClassification(ctx, ticketID, req.Triage, req.Category); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update classification", err.Error())
		return
	}

	// Assignment is best-effort: a ticket nobody can take still gets its
	// status update below.
	assigned, err := h.Assigner.Assign(ctx, ticketID)
	if err != nil {
		h.Logger.Error().Err(err).Str("ticket_id", ticketID).Msg("assignment failed during ticket update")
	} else if !assigned {
		h.Logger.Warn().Str("ticket_id", ticketID).Msg("ticket left unassigned after update")
	}

	if err := h.Store.UpdateStatus(ctx, ticketID, req.Status); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update status", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Ticket updated successfully"})
}

type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Question  string `json:"question" validate:"required"`
}

// @Summary Ask about tickets
// @Tags chat
// @Accept json
// @Produce json
// @Success 200 {object} service.ChatResult
// @Router /chat [post]
func (h *Handler) ChatQuery(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	// Retrieval and model failures come back as a mode=error result with a
	// 200; only history-load and turn-log failures reach this branch.
	result, err := h.Chat.Answer(c.Request.Context(), req.SessionID, req.Question)
	if err != nil {
		h.Logger.Error().Err(err).Str("session_id", req.SessionID).Msg("chat pipeline failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Rebuild the embedding index
// @Tags index
// @Produce json
// @Success 200 {object} map[string]any
// @Router /index/rebuild [post]
func (h *Handler) RebuildIndex(c *gin.Context) {
	count, err := h.Indexer.Rebuild(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INDEX_ERROR", "Index rebuild failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": count})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
