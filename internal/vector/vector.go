package vector

import "context"

// Record is one ticket's entry in the embedding collection: the vector plus
// the denormalized display fields the chat pipeline shows to the model.
type Record struct {
	TicketID     string    `json:"ticket_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	ReportedDate string    `json:"reported_date"`
	Summary      string    `json:"summary"`
	Description  string    `json:"description"`
	Triage       string    `json:"triage"`
	Category     string    `json:"category"`
	Solution     string    `json:"solution"`
	Vector       []float32 `json:"-"`
}

// Collection is the vector store the indexer writes and the chat pipeline
// reads. Recreate is destructive and assumed to run exclusively, never
// concurrently with Search.
type Collection interface {
	// Recreate drops the collection if it exists and creates it empty.
	Recreate(ctx context.Context) error
	// Insert bulk-writes records keyed by ticket id.
	Insert(ctx context.Context, records []Record) error
	// Search returns up to limit nearest neighbors under cosine distance,
	// best match first.
	Search(ctx context.Context, query []float32, limit int) ([]Record, error)
	// GetByTicketID looks up a single record by its (normalized) ticket id.
	// Absence is reported via the bool, not an error.
	GetByTicketID(ctx context.Context, ticketID string) (Record, bool, error)
}
