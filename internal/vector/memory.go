package vector

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// MemoryCollection is an in-process Collection used in tests and when no
// Qdrant instance is configured. Same contract, cosine distance in Go.
type MemoryCollection struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryCollection() *MemoryCollection {
	return &MemoryCollection{}
}

func (m *MemoryCollection) Recreate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

func (m *MemoryCollection) Insert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *MemoryCollection) Search(ctx context.Context, query []float32, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 3
	}

	type scored struct {
		rec   Record
		score float64
	}
	matches := make([]scored, 0, len(m.records))
	for _, r := range m.records {
		matches = append(matches, scored{rec: r, score: cosineSimilarity(query, r.Vector)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score == matches[j].score {
			return matches[i].rec.TicketID < matches[j].rec.TicketID
		}
		return matches[i].score > matches[j].score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Record, 0, len(matches))
	for _, s := range matches {
		out = append(out, s.rec)
	}
	return out, nil
}

func (m *MemoryCollection) GetByTicketID(ctx context.Context, ticketID string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if strings.EqualFold(strings.TrimSpace(r.TicketID), ticketID) {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
