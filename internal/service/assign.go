package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/srinipalli/beta-ui/backend/internal/models"
)

// AssignStore is the slice of the database the assignment evaluator needs.
type AssignStore interface {
	GetProcessedClassification(ctx context.Context, ticketID string) (models.ProcessedTicket, bool, error)
	FindProcessorEmployee(ctx context.Context, category, triage string) (string, bool, error)
	GetTicketAssignedDate(ctx context.Context, ticketID string) (*time.Time, error)
	UpsertAssignment(ctx context.Context, a models.Assignment) error
}

type AssignmentService struct {
	Store  AssignStore
	Logger zerolog.Logger
}

// Assign matches the ticket's (category, triage) against employee capability
// pairs and overwrites the ticket's assignment. It returns false when the
// ticket has no processed classification or no employee declares the pair;
// neither case is an error. Lookup and write failures propagate.
func (s *AssignmentService) Assign(ctx context.Context, ticketID string) (bool, error) {
	processed, found, err := s.Store.GetProcessedClassification(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if !found {
		s.Logger.Warn().Str("ticket_id", ticketID).Msg("no processed ticket, skipping assignment")
		return false, nil
	}

	category := normalizeMatchKey(processed.Category)
	triage := normalizeMatchKey(processed.Triage)

	employeeID, found, err := s.Store.FindProcessorEmployee(ctx, category, triage)
	if err != nil {
		return false, err
	}
	if !found {
		s.Logger.Warn().
			Str("ticket_id", ticketID).
			Str("category", category).
			Str("triage", triage).
			Msg("no matching employee for assignment")
		return false, nil
	}

	// May be null: the assignment date can predate an employee being found.
	assignedDate, err := s.Store.GetTicketAssignedDate(ctx, ticketID)
	if err != nil {
		return false, err
	}

	assignment := models.Assignment{
		TicketID:     ticketID,
		EmployeeID:   employeeID,
		AssignedDate: assignedDate,
	}
	if err := s.Store.UpsertAssignment(ctx, assignment); err != nil {
		return false, err
	}

	s.Logger.Info().
		Str("ticket_id", ticketID).
		Str("employee_id", employeeID).
		Msg("ticket assigned")
	return true, nil
}

func normalizeMatchKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
