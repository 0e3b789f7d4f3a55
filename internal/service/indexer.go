package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/srinipalli/beta-ui/backend/internal/ai"
	"github.com/srinipalli/beta-ui/backend/internal/db"
	"github.com/srinipalli/beta-ui/backend/internal/vector"
)

// IndexSource provides the joined ticket rows the indexer embeds.
type IndexSource interface {
	IndexRows(ctx context.Context) ([]db.IndexRow, error)
}

// IndexerService rebuilds the embedding collection from the relational store.
// The rebuild is destructive (drop + recreate) and must not run concurrently
// with live queries; fine at current ticket volume, a reconciliation pass
// would be needed if that grows.
type IndexerService struct {
	Store      IndexSource
	Embedder   ai.Embedder
	Collection vector.Collection
	Logger     zerolog.Logger
}

// Rebuild reads every processed ticket, embeds its display fields, and
// replaces the collection wholesale. Returns the number of records written.
func (s *IndexerService) Rebuild(ctx context.Context) (int, error) {
	rows, err := s.Store.IndexRows(ctx)
	if err != nil {
		return 0, err
	}

	// The assignment join can fan rows out; keep the first occurrence per
	// ticket so each id appears exactly once.
	seen := make(map[string]struct{}, len(rows))
	var unique []db.IndexRow
	for _, r := range rows {
		if _, ok := seen[r.TicketID]; ok {
			continue
		}
		seen[r.TicketID] = struct{}{}
		unique = append(unique, r)
	}

	if len(unique) == 0 {
		if err := s.Collection.Recreate(ctx); err != nil {
			return 0, err
		}
		s.Logger.Info().Msg("index rebuilt empty: no tickets to embed")
		return 0, nil
	}

	texts := make([]string, len(unique))
	for i, r := range unique {
		texts[i] = embedText(r)
	}
	vectors, err := s.Embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(unique) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d tickets", len(vectors), len(unique))
	}

	records := make([]vector.Record, len(unique))
	for i, r := range unique {
		records[i] = vector.Record{
			TicketID:     r.TicketID,
			Title:        r.Title,
			Status:       r.Status,
			ReportedDate: r.ReportedDate,
			Summary:      r.Summary,
			Description:  r.Description,
			Triage:       r.Triage,
			Category:     r.Category,
			Solution:     r.Solution,
			Vector:       vectors[i],
		}
	}

	if err := s.Collection.Recreate(ctx); err != nil {
		return 0, err
	}
	if err := s.Collection.Insert(ctx, records); err != nil {
		return 0, err
	}

	s.Logger.Info().Int("count", len(records)).Msg("index rebuilt")
	return len(records), nil
}

// embedText concatenates the display fields in a fixed order. The order is
// part of the embedding's semantic identity: changing it invalidates any
// previously built index.
func embedText(r db.IndexRow) string {
	return fmt.Sprintf(
		"Ticket ID: %s\nTitle: %s\nStatus: %s\nReported Date: %s\nSummary: %s\nDescription: %s\nTriage: %s\nCategory: %s\nSolution: %s",
		r.TicketID, r.Title, r.Status, r.ReportedDate, r.Summary,
		r.Description, r.Triage, r.Category, r.Solution,
	)
}
