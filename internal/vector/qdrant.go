package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QdrantCollection talks to a Qdrant instance over its REST API. Points are
// keyed by a deterministic UUID derived from the ticket id, so re-inserting
// the same ticket overwrites rather than duplicates.
type QdrantCollection struct {
	BaseURL   string
	Name      string
	VectorDim int
	Client    *http.Client
}

var pointIDNamespace = uuid.MustParse("7f8c9a4e-51d2-4b6f-9c3a-2e8d0b5a1f67")

func NewQdrantCollection(baseURL, name string, dim int) (*QdrantCollection, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("QDRANT_URL is not set")
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("QDRANT_COLLECTION is not set")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("EMBED_DIM must be a positive integer")
	}
	return &QdrantCollection{
		BaseURL:   baseURL,
		Name:      name,
		VectorDim: dim,
		Client:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (q *QdrantCollection) Recreate(ctx context.Context) error {
	// A 404 on delete just means the collection was never built.
	if err := q.doJSON(ctx, http.MethodDelete, q.path(""), nil, nil); err != nil {
		var httpErr *qdrantHTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
			return err
		}
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.VectorDim,
			"distance": "Cosine",
		},
	}
	return q.doJSON(ctx, http.MethodPut, q.path(""), body, nil)
}

func (q *QdrantCollection) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != q.VectorDim {
			return fmt.Errorf("record %q dimension mismatch: expected %d got %d", r.TicketID, q.VectorDim, len(r.Vector))
		}
		points = append(points, map[string]any{
			"id":      q.pointID(r.TicketID),
			"vector":  r.Vector,
			"payload": recordPayload(r),
		})
	}
	return q.doJSON(ctx, http.MethodPut, q.path("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (q *QdrantCollection) Search(ctx context.Context, query []float32, limit int) ([]Record, error) {
	if len(query) != q.VectorDim {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d got %d", q.VectorDim, len(query))
	}
	if limit <= 0 {
		limit = 3
	}
	req := map[string]any{
		"vector":       query,
		"limit":        limit,
		"with_payload": true,
	}
	var items []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	}
	if err := q.doJSON(ctx, http.MethodPost, q.path("/points/search"), req, &items); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		out = append(out, recordFromPayload(item.Payload))
	}
	return out, nil
}

func (q *QdrantCollection) GetByTicketID(ctx context.Context, ticketID string) (Record, bool, error) {
	req := map[string]any{
		"filter": map[string]any{
			"must": []any{
				map[string]any{"key": "ticket_id", "match": map[string]any{"value": normalizeTicketID(ticketID)}},
			},
		},
		"limit":        1,
		"with_payload": true,
	}
	var result struct {
		Points []struct {
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	if err := q.doJSON(ctx, http.MethodPost, q.path("/points/scroll"), req, &result); err != nil {
		return Record{}, false, err
	}
	if len(result.Points) == 0 {
		return Record{}, false, nil
	}
	return recordFromPayload(result.Points[0].Payload), true, nil
}

func (q *QdrantCollection) path(suffix string) string {
	return "/collections/" + q.Name + suffix
}

func (q *QdrantCollection) pointID(ticketID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(q.Name+"|"+normalizeTicketID(ticketID))).String()
}

// normalizeTicketID lowercases and trims the identifier on both the stored and
// the queried side; Qdrant keyword match is case-sensitive, and tickets carry
// mixed-case ids in the database.
func normalizeTicketID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

type qdrantHTTPError struct {
	StatusCode int
	Body       string
}

func (e *qdrantHTTPError) Error() string {
	return fmt.Sprintf("qdrant http status=%d body=%q", e.StatusCode, e.Body)
}

func (q *QdrantCollection) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return err
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, q.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := q.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &qdrantHTTPError{StatusCode: resp.StatusCode, Body: truncate(raw, 512)}
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode qdrant envelope: %w", err)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}

func recordPayload(r Record) map[string]any {
	return map[string]any{
		"ticket_id":     normalizeTicketID(r.TicketID),
		"title":         r.Title,
		"status":        r.Status,
		"reported_date": r.ReportedDate,
		"summary":       r.Summary,
		"description":   r.Description,
		"triage":        r.Triage,
		"category":      r.Category,
		"solution":      r.Solution,
	}
}

func recordFromPayload(p map[string]any) Record {
	get := func(key string) string {
		if s, ok := p[key].(string); ok {
			return s
		}
		return ""
	}
	return Record{
		TicketID:     get("ticket_id"),
		Title:        get("title"),
		Status:       get("status"),
		ReportedDate: get("reported_date"),
		Summary:      get("summary"),
		Description:  get("description"),
		Triage:       get("triage"),
		Category:     get("category"),
		Solution:     get("solution"),
	}
}
