package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/srinipalli/beta-ui/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TicketSummary is a flattened per-ticket row for the dashboard table.
type TicketSummary struct {
	TicketID     string `json:"ticket_id"`
	Title        string `json:"title"`
	Triage       string `json:"triage"`
	Category     string `json:"category"`
	Status       string `json:"status"`
	EmployeeName string `json:"employee_name"`
	Source       string `json:"source"`
}

// TicketDetail is the richer per-ticket row, including the optional
// left-joined reason texts.
type TicketDetail struct {
	TicketID         string     `json:"ticket_id"`
	Title            string     `json:"ticket_title"`
	Status           string     `json:"ticket_status"`
	ReportedDate     *time.Time `json:"ticket_reported_date"`
	Summary          string     `json:"ticket_summary"`
	Description      string     `json:"ticket_description"`
	Triage           string     `json:"ticket_triage"`
	TriageReason     *string    `json:"ticket_triage_reason"`
	Category         string     `json:"ticket_category"`
	CategoryReason   *string    `json:"ticket_category_reason"`
	AssignedEmployee string     `json:"ticket_assigned_employee"`
	Solution         string     `json:"ticket_solution"`
}

func (s *Store) ProcessedTicketIDs(ctx context.Context) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT ticket_id FROM processed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) TicketSummaries(ctx context.Context) ([]TicketSummary, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT m.ticket_id, m.title, p.triage, p.category, m.status, e.employee_name, m.source
		FROM main_table m
		JOIN processed p ON m.ticket_id = p.ticket_id
		JOIN assign a ON m.ticket_id = a.ticket_id
		JOIN employee e ON a.assigned_id = e.employee_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TicketSummary
	for rows.Next() {
		var t TicketSummary
		if err := rows.Scan(&t.TicketID, &t.Title, &t.Triage, &t.Category, &t.Status, &t.EmployeeName, &t.Source); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const ticketDetailColumns = `
	SELECT m.ticket_id, m.title, m.status, m.reported_date, p.summary,
		m.description, p.triage, p.category, e.employee_name, p.solution,
		r.triage_reason, r.category_reason
	FROM main_table m
	JOIN processed p ON m.ticket_id = p.ticket_id
	JOIN assign a ON m.ticket_id = a.ticket_id
	JOIN employee e ON a.assigned_id = e.employee_id
	LEFT JOIN reasons r ON m.ticket_id = r.ticket_id`

func scanTicketDetail(row pgx.Row) (TicketDetail, error) {
	var d TicketDetail
	err := row.Scan(
		&d.TicketID, &d.Title, &d.Status, &d.ReportedDate, &d.Summary,
		&d.Description, &d.Triage, &d.Category, &d.AssignedEmployee, &d.Solution,
		&d.TriageReason, &d.CategoryReason,
	)
	return d, err
}

func (s *Store) TicketDetails(ctx context.Context) ([]TicketDetail, error) {
	rows, err := s.Pool.Query(ctx, ticketDetailColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TicketDetail
	for rows.Next() {
		d, err := scanTicketDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetTicketDetail(ctx context.Context, ticketID string) (TicketDetail, error) {
	row := s.Pool.QueryRow(ctx, ticketDetailColumns+` WHERE m.ticket_id = $1`, ticketID)
	return scanTicketDetail(row)
}

func (s *Store) distinctStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) DistinctCategories(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, `SELECT DISTINCT category FROM processed`)
}

func (s *Store) DistinctStatuses(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, `SELECT DISTINCT status FROM main_table`)
}

func (s *Store) DistinctAssignees(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, `
		SELECT DISTINCT e.employee_name
		FROM assign a JOIN employee e ON a.assigned_id = e.employee_id`)
}

func (s *Store) DistinctSources(ctx context.Context) ([]string, error) {
	return s.distinctStrings(ctx, `SELECT DISTINCT source FROM main_table ORDER BY source`)
}

func (s *Store) UpdateClassification(ctx context.Context, ticketID, triage, category string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE processed SET triage = $1, category = $2 WHERE ticket_id = $3
	`, triage, category, ticketID)
	return err
}

func (s *Store) UpdateStatus(ctx context.Context, ticketID, status string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE main_table SET status = $1 WHERE ticket_id = $2
	`, status, ticketID)
	return err
}

// GetProcessedClassification returns a ticket's (category, triage). A ticket
// with no processed row reports found=false, not an error.
func (s *Store) GetProcessedClassification(ctx context.Context, ticketID string) (models.ProcessedTicket, bool, error) {
	var p models.ProcessedTicket
	p.TicketID = ticketID
	err := s.Pool.QueryRow(ctx, `
		SELECT category, triage FROM processed WHERE ticket_id = $1 LIMIT 1
	`, ticketID).Scan(&p.Category, &p.Triage)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ProcessedTicket{}, false, nil
	}
	if err != nil {
		return models.ProcessedTicket{}, false, err
	}
	return p, true, nil
}

// FindProcessorEmployee finds the role-"P" employee declaring the given
// (category, triage) capability, normalized on both sides. Ties break on the
// lowest employee id so repeated runs pick the same employee.
func (s *Store) FindProcessorEmployee(ctx context.Context, category, triage string) (string, bool, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `
		SELECT employee_id FROM employee
		WHERE LOWER(TRIM(category)) = $1 AND LOWER(TRIM(triage)) = $2 AND role = 'P'
		ORDER BY employee_id
		LIMIT 1
	`, category, triage).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// GetTicketAssignedDate reads the ticket's assignment date, which may be null
// when assignment predates an employee being found.
func (s *Store) GetTicketAssignedDate(ctx context.Context, ticketID string) (*time.Time, error) {
	var date *time.Time
	err := s.Pool.QueryRow(ctx, `
		SELECT assigned_date FROM main_table WHERE ticket_id = $1 LIMIT 1
	`, ticketID).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return date, nil
}

// UpsertAssignment overwrites the ticket's assignment row. At most one active
// assignment per ticket; reassignment replaces, never versions.
func (s *Store) UpsertAssignment(ctx context.Context, a models.Assignment) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO assign (ticket_id, assigned_id, assigned_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticket_id) DO UPDATE SET
			assigned_id = EXCLUDED.assigned_id,
			assigned_date = EXCLUDED.assigned_date
	`, a.TicketID, a.EmployeeID, a.AssignedDate)
	return err
}

// IndexRow is one ticket's display fields for the embedding indexer. All
// fields are coerced to strings with NULLs mapped to "".
type IndexRow struct {
	TicketID     string
	Title        string
	Status       string
	ReportedDate string
	Summary      string
	Description  string
	Triage       string
	Category     string
	Solution     string
}

// IndexRows joins tickets with their classification and assignment. Multiple
// assignment rows can fan the join out; the indexer dedups by ticket id.
func (s *Store) IndexRows(ctx context.Context) ([]IndexRow, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT m.ticket_id, COALESCE(m.title, ''), COALESCE(m.status, ''),
			COALESCE(m.reported_date::text, ''), COALESCE(p.summary, ''),
			COALESCE(m.description, ''), COALESCE(p.triage, ''),
			COALESCE(p.category, ''), COALESCE(p.solution, '')
		FROM main_table m
		JOIN processed p ON m.ticket_id = p.ticket_id
		JOIN assign a ON m.ticket_id = a.ticket_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []IndexRow
	for rows.Next() {
		var r IndexRow
		if err := rows.Scan(
			&r.TicketID, &r.Title, &r.Status, &r.ReportedDate, &r.Summary,
			&r.Description, &r.Triage, &r.Category, &r.Solution,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentChatTurns returns a session's newest turns, newest first. An unknown
// session yields an empty slice.
func (s *Store) RecentChatTurns(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT session_id, message_index, sender, content, timestamp
		FROM chat_history
		WHERE session_id = $1
		ORDER BY message_index DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatTurn
	for rows.Next() {
		var t models.ChatTurn
		if err := rows.Scan(&t.SessionID, &t.Index, &t.Sender, &t.Content, &t.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AppendChatExchange logs the question and answer as two sequential turns.
// Sequence numbers come from a MAX+1 subselect inside the insert itself, so
// both rows commit atomically with consecutive indices.
func (s *Store) AppendChatExchange(ctx context.Context, sessionID, question, answer string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO chat_history (session_id, message_index, sender, content, timestamp)
			SELECT $1, base.max_index + v.ord, v.sender, v.content, NOW()
			FROM (SELECT COALESCE(MAX(message_index), 0) AS max_index
				FROM chat_history WHERE session_id = $1) base,
				(VALUES (1, 'user', $2::text), (2, 'bot', $3::text)) AS v(ord, sender, content)
		`, sessionID, question, answer)
		return err
	})
}
