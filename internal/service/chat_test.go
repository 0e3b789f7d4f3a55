package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/srinipalli/beta-ui/backend/internal/ai"
	"github.com/srinipalli/beta-ui/backend/internal/models"
	"github.com/srinipalli/beta-ui/backend/internal/vector"
)

type fakeHistoryStore struct {
	turns     map[string][]models.ChatTurn
	recentErr error
	appendErr error
}

func newFakeHistoryStore() *fakeHistoryStore {
	return &fakeHistoryStore{turns: map[string][]models.ChatTurn{}}
}

func (f *fakeHistoryStore) RecentChatTurns(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	all := f.turns[sessionID]
	var out []models.ChatTurn
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (f *fakeHistoryStore) AppendChatExchange(ctx context.Context, sessionID, question, answer string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	max := 0
	for _, t := range f.turns[sessionID] {
		if t.Index > max {
			max = t.Index
		}
	}
	now := time.Now()
	f.turns[sessionID] = append(f.turns[sessionID],
		models.ChatTurn{SessionID: sessionID, Index: max + 1, Sender: models.SenderUser, Content: question, Timestamp: now},
		models.ChatTurn{SessionID: sessionID, Index: max + 2, Sender: models.SenderBot, Content: answer, Timestamp: now},
	)
	return nil
}

type scriptedAssistant struct {
	answer     string
	err        error
	calls      int
	lastPrompt string
}

func (a *scriptedAssistant) Ask(ctx context.Context, prompt string) (string, error) {
	a.calls++
	a.lastPrompt = prompt
	if a.err != nil {
		return "", a.err
	}
	return a.answer, nil
}

type countingEmbedder struct {
	inner ai.Embedder
	calls int
}

func (e *countingEmbedder) Dim() int { return e.inner.Dim() }

func (e *countingEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	e.calls++
	return e.inner.Embed(ctx, inputs)
}

type stubCollection struct {
	record    vector.Record
	found     bool
	getErr    error
	searchRes []vector.Record
	searchErr error
}

func (s *stubCollection) Recreate(ctx context.Context) error { return nil }

func (s *stubCollection) Insert(ctx context.Context, recs []vector.Record) error { return nil }

func (s *stubCollection) Search(ctx context.Context, q []float32, limit int) ([]vector.Record, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if len(s.searchRes) > limit {
		return s.searchRes[:limit], nil
	}
	return s.searchRes, nil
}

func (s *stubCollection) GetByTicketID(ctx context.Context, id string) (vector.Record, bool, error) {
	if s.getErr != nil {
		return vector.Record{}, false, s.getErr
	}
	if s.found && strings.EqualFold(s.record.TicketID, id) {
		return s.record, true, nil
	}
	return vector.Record{}, false, nil
}

func newTestChatService(store ChatHistoryStore, coll vector.Collection, assistant ai.Assistant, embedder ai.Embedder) *ChatService {
	if embedder == nil {
		embedder = ai.MockEmbedder{VectorDim: 8}
	}
	return NewChatService(store, coll, embedder, assistant, zerolog.Nop(), "def")
}

func TestAnswerTicketIDMatch(t *testing.T) {
	store := newFakeHistoryStore()
	assistant := &scriptedAssistant{answer: "Ticket def-0042 is about a VPN outage."}
	embedder := &countingEmbedder{inner: ai.MockEmbedder{VectorDim: 8}}
	coll := &stubCollection{
		record: vector.Record{TicketID: "def-0042", Title: "VPN outage", Category: "Network"},
		found:  true,
	}
	svc := newTestChatService(store, coll, assistant, embedder)

	res, err := svc.Answer(context.Background(), "s1", "what is ticket def-0042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != ModeTicketIDMatch {
		t.Fatalf("expected mode %s, got %q", ModeTicketIDMatch, res.Mode)
	}
	if len(res.SourceTickets) != 1 || res.SourceTickets[0].TicketID != "def-0042" {
		t.Fatalf("expected single matched source ticket, got %+v", res.SourceTickets)
	}
	if embedder.calls != 0 {
		t.Fatalf("expected no similarity search on direct hit, embedder called %d times", embedder.calls)
	}
	if !strings.Contains(assistant.lastPrompt, "--- Requested Ticket ---") {
		t.Fatalf("prompt missing requested ticket section:\n%s", assistant.lastPrompt)
	}
	if !strings.Contains(assistant.lastPrompt, "[No prior chat]") {
		t.Fatalf("expected no-prior-chat placeholder for empty session:\n%s", assistant.lastPrompt)
	}

	turns := store.turns["s1"]
	if len(turns) != 2 {
		t.Fatalf("expected 2 logged turns, got %d", len(turns))
	}
	if turns[0].Index != 1 || turns[1].Index != 2 {
		t.Fatalf("expected sequence numbers 1 and 2, got %d and %d", turns[0].Index, turns[1].Index)
	}
	if turns[0].Sender != models.SenderUser || turns[1].Sender != models.SenderBot {
		t.Fatalf("expected user then bot turn, got %s then %s", turns[0].Sender, turns[1].Sender)
	}
}

func TestAnswerUnknownTicketIDFallsBack(t *testing.T) {
	store := newFakeHistoryStore()
	assistant := &scriptedAssistant{answer: "Closest matches below."}
	coll := &stubCollection{
		searchRes: []vector.Record{{TicketID: "def-0001"}, {TicketID: "def-0002"}},
	}
	svc := newTestChatService(store, coll, assistant, nil)

	res, err := svc.Answer(context.Background(), "s1", "tell me about ticket def-9999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != ModeRAGFallback {
		t.Fatalf("expected silent fallback to %s, got %q", ModeRAGFallback, res.Mode)
	}
	if len(res.SourceTickets) != 2 {
		t.Fatalf("expected 2 source tickets, got %d", len(res.SourceTickets))
	}
}

func TestAnswerLookupErrorFallsBack(t *testing.T) {
	store := newFakeHistoryStore()
	assistant := &scriptedAssistant{answer: "Closest matches below."}
	coll := &stubCollection{
		getErr:    errors.New("collection offline"),
		searchRes: []vector.Record{{TicketID: "def-0001"}},
	}
	svc := newTestChatService(store, coll, assistant, nil)

	res, err := svc.Answer(context.Background(), "s1", "status of def-0001?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != ModeRAGFallback {
		t.Fatalf("expected lookup error to degrade to %s, got %q", ModeRAGFallback, res.Mode)
	}
}

func TestAnswerNoResults(t *testing.T) {
	store := newFakeHistoryStore()
	assistant := &scriptedAssistant{answer: "should not be called"}
	svc := newTestChatService(store, &stubCollection{}, assistant, nil)

	res, err := svc.Answer(context.Background(), "s1", "how do I reset my password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Response != NoRelevantTickets {
		t.Fatalf("expected %q, got %q", NoRelevantTickets, res.Response)
	}
	if res.Mode != "" {
		t.Fatalf("expected no mode for empty search, got %q", res.Mode)
	}
	if assistant.calls != 0 {
		t.Fatalf("expected no model call with zero matches, got %d", assistant.calls)
	}
	if len(store.turns["s1"]) != 2 {
		t.Fatalf("expected the exchange to still be logged, got %d turns", len(store.turns["s1"]))
	}
}

func TestAnswerSearchErrorBecomesErrorMode(t *testing.T) {
	store := newFakeHistoryStore()
	assistant := &scriptedAssistant{answer: "unused"}
	coll := &stubCollection{searchErr: errors.New("qdrant unreachable")}
	svc := newTestChatService(store, coll, assistant, nil)

	res, err := svc.Answer(context.Background(), "s1", "anything broken lately?")
	if err != nil {
		t.Fatalf("error mode must not surface as an error: %v", err)
	}
	if res.Mode != ModeError {
		t.Fatalf("expected mode %s, got %q", ModeError, res.Mode)
	}
	if !strings.Contains(res.Response, "qdrant unreachable") {
		t.Fatalf("expected error text in response, got %q", res.Response)
	}
}

func TestAnswerSequenceNumbersIncrease(t *testing.T) {
	store := newFakeHistoryStore()
	assistant := &scriptedAssistant{answer: "ok"}
	coll := &stubCollection{searchRes: []vector.Record{{TicketID: "def-0001"}}}
	svc := newTestChatService(store, coll, assistant, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.Answer(context.Background(), "s1", "anything new?"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	turns := store.turns["s1"]
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Index != i+1 {
			t.Fatalf("expected strictly increasing indices, turn %d has index %d", i, turn.Index)
		}
	}
}

func TestAnswerUsesChatHistoryInPrompt(t *testing.T) {
	store := newFakeHistoryStore()
	store.turns["s1"] = []models.ChatTurn{
		{SessionID: "s1", Index: 1, Sender: models.SenderUser, Content: "hello"},
		{SessionID: "s1", Index: 2, Sender: models.SenderBot, Content: "hi, how can I help?"},
	}
	assistant := &scriptedAssistant{answer: "ok"}
	coll := &stubCollection{searchRes: []vector.Record{{TicketID: "def-0001"}}}
	svc := newTestChatService(store, coll, assistant, nil)

	res, err := svc.Answer(context.Background(), "s1", "any open network tickets?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "User: hello\nAssistant: hi, how can I help?\n"
	if res.ChatUsed != want {
		t.Fatalf("expected chat context %q, got %q", want, res.ChatUsed)
	}
	if !strings.Contains(assistant.lastPrompt, want) {
		t.Fatalf("prompt missing chat history:\n%s", assistant.lastPrompt)
	}
}

func TestAnswerHistoryErrorPropagates(t *testing.T) {
	store := newFakeHistoryStore()
	store.recentErr = errors.New("db down")
	svc := newTestChatService(store, &stubCollection{}, &scriptedAssistant{}, nil)

	if _, err := svc.Answer(context.Background(), "s1", "hello"); err == nil {
		t.Fatal("expected history load failure to propagate")
	}
}

func TestExtractTicketID(t *testing.T) {
	svc := newTestChatService(newFakeHistoryStore(), &stubCollection{}, &scriptedAssistant{}, nil)

	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"what is ticket def-1234", "def-1234", true},
		{"what is DEF-1234 about", "def-1234", true},
		{"ticket: def-0042 please", "def-0042", true},
		{"ticket #def-0042", "def-0042", true},
		{"def-12345 is not a ticket id", "", false},
		{"no identifier here", "", false},
	}
	for _, tc := range cases {
		got, ok := svc.ExtractTicketID(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ExtractTicketID(%q) = %q, %v; want %q, %v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}
