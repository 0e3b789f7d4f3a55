package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/srinipalli/beta-ui/backend/internal/ai"
	"github.com/srinipalli/beta-ui/backend/internal/db"
	"github.com/srinipalli/beta-ui/backend/internal/vector"
)

type fakeIndexSource struct {
	rows []db.IndexRow
	err  error
}

func (f *fakeIndexSource) IndexRows(ctx context.Context) ([]db.IndexRow, error) {
	return f.rows, f.err
}

func TestRebuildDeduplicatesAndCounts(t *testing.T) {
	source := &fakeIndexSource{rows: []db.IndexRow{
		{TicketID: "def-0001", Title: "VPN down", Category: "Network"},
		{TicketID: "def-0002", Title: "Printer jam", Category: "Hardware"},
		{TicketID: "def-0001", Title: "VPN down", Category: "Network"},
	}}
	coll := vector.NewMemoryCollection()
	svc := &IndexerService{
		Store:      source,
		Embedder:   ai.MockEmbedder{VectorDim: 8},
		Collection: coll,
		Logger:     zerolog.Nop(),
	}

	count, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unique tickets indexed, got %d", count)
	}
	for _, id := range []string{"def-0001", "def-0002"} {
		if _, found, _ := coll.GetByTicketID(context.Background(), id); !found {
			t.Fatalf("expected %s in the collection", id)
		}
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	source := &fakeIndexSource{rows: []db.IndexRow{
		{TicketID: "def-0001", Title: "VPN down"},
	}}
	coll := vector.NewMemoryCollection()
	svc := &IndexerService{
		Store:      source,
		Embedder:   ai.MockEmbedder{VectorDim: 8},
		Collection: coll,
		Logger:     zerolog.Nop(),
	}

	for i := 0; i < 2; i++ {
		count, err := svc.Rebuild(context.Background())
		if err != nil {
			t.Fatalf("rebuild %d: unexpected error: %v", i, err)
		}
		if count != 1 {
			t.Fatalf("rebuild %d: expected count 1, got %d", i, count)
		}
	}

	// Back-to-back rebuilds must not accumulate duplicates.
	probe, err := ai.MockEmbedder{VectorDim: 8}.Embed(context.Background(), []string{"probe"})
	if err != nil {
		t.Fatal(err)
	}
	matches, err := coll.Search(context.Background(), probe[0], 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 record after repeated rebuilds, got %d", len(matches))
	}
}

func TestRebuildEmptySourceClearsCollection(t *testing.T) {
	coll := vector.NewMemoryCollection()
	if err := coll.Insert(context.Background(), []vector.Record{{TicketID: "stale"}}); err != nil {
		t.Fatal(err)
	}
	svc := &IndexerService{
		Store:      &fakeIndexSource{},
		Embedder:   ai.MockEmbedder{VectorDim: 8},
		Collection: coll,
		Logger:     zerolog.Nop(),
	}

	count, err := svc.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
	if _, found, _ := coll.GetByTicketID(context.Background(), "stale"); found {
		t.Fatal("expected stale record to be dropped")
	}
}

func TestRebuildSourceErrorPropagates(t *testing.T) {
	svc := &IndexerService{
		Store:      &fakeIndexSource{err: errors.New("db down")},
		Embedder:   ai.MockEmbedder{VectorDim: 8},
		Collection: vector.NewMemoryCollection(),
		Logger:     zerolog.Nop(),
	}
	if _, err := svc.Rebuild(context.Background()); err == nil {
		t.Fatal("expected source error to propagate")
	}
}

func TestEmbedTextFieldOrder(t *testing.T) {
	row := db.IndexRow{
		TicketID:     "def-0042",
		Title:        "VPN outage",
		Status:       "open",
		ReportedDate: "2025-03-10",
		Summary:      "site-wide VPN failure",
		Description:  "users cannot connect",
		Triage:       "L2",
		Category:     "Network",
		Solution:     "restart concentrator",
	}
	want := "Ticket ID: def-0042\nTitle: VPN outage\nStatus: open\nReported Date: 2025-03-10\nSummary: site-wide VPN failure\nDescription: users cannot connect\nTriage: L2\nCategory: Network\nSolution: restart concentrator"
	if got := embedText(row); got != want {
		t.Fatalf("embed text mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
