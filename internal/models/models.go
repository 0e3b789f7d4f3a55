package models

import "time"

type Ticket struct {
	ID           string     `json:"ticket_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Source       string     `json:"source"`
	ReportedDate *time.Time `json:"reported_date"`
	AssignedDate *time.Time `json:"assigned_date,omitempty"`
}

// ProcessedTicket holds the classification produced for a ticket by the
// external processing step. One row per ticket.
type ProcessedTicket struct {
	TicketID string `json:"ticket_id"`
	Category string `json:"category"`
	Triage   string `json:"triage"`
	Solution string `json:"solution"`
	Summary  string `json:"summary"`
}

type Employee struct {
	ID       string `json:"employee_id"`
	Name     string `json:"employee_name"`
	Role     string `json:"role"`
	Category string `json:"category"`
	Triage   string `json:"triage"`
}

type Assignment struct {
	TicketID     string     `json:"ticket_id"`
	EmployeeID   string     `json:"assigned_id"`
	AssignedDate *time.Time `json:"assigned_date"`
}

// Reason is the optional free-text justification for a ticket's triage and
// category decision. Left-joined; most tickets have none.
type Reason struct {
	TicketID       string `json:"ticket_id"`
	TriageReason   string `json:"triage_reason"`
	CategoryReason string `json:"category_reason"`
}

type ChatTurn struct {
	SessionID string    `json:"session_id"`
	Index     int       `json:"message_index"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SenderUser = "user"
	SenderBot  = "bot"
)
