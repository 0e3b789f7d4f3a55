package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/srinipalli/beta-ui/backend/internal/ai"
	"github.com/srinipalli/beta-ui/backend/internal/models"
	"github.com/srinipalli/beta-ui/backend/internal/vector"
)

const (
	ModeTicketIDMatch = "ticket_id_match"
	ModeRAGFallback   = "rag_fallback"
	ModeError         = "error"

	// Returned verbatim when similarity search comes back empty; the model
	// is never invoked in that case.
	NoRelevantTickets = "No relevant tickets found."

	defaultHistoryLimit = 5
	defaultTopK         = 3
)

// ChatHistoryStore reads and appends a session's turns.
type ChatHistoryStore interface {
	RecentChatTurns(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error)
	AppendChatExchange(ctx context.Context, sessionID, question, answer string) error
}

// ChatResult is the conversational payload. Mode is empty when similarity
// search found nothing and the fixed response was returned.
type ChatResult struct {
	Response      string          `json:"response"`
	SourceTickets []vector.Record `json:"source_tickets"`
	ChatUsed      string          `json:"chat_used"`
	Mode          string          `json:"mode,omitempty"`
}

// ChatService answers natural-language questions about tickets: direct
// ticket-id lookup when the question references one, cosine similarity search
// otherwise, with the assembled prompt fed to the language model.
type ChatService struct {
	Store        ChatHistoryStore
	Collection   vector.Collection
	Embedder     ai.Embedder
	Assistant    ai.Assistant
	Logger       zerolog.Logger
	HistoryLimit int
	TopK         int

	idPattern *regexp.Regexp
}

// NewChatService builds a ChatService recognizing ticket ids of the form
// <prefix>-NNNN (four digits), optionally preceded by the word "ticket".
func NewChatService(
	store ChatHistoryStore,
	collection vector.Collection,
	embedder ai.Embedder,
	assistant ai.Assistant,
	logger zerolog.Logger,
	ticketIDPrefix string,
) *ChatService {
	prefix := strings.ToLower(strings.TrimSpace(ticketIDPrefix))
	if prefix == "" {
		prefix = "def"
	}
	pattern := regexp.MustCompile(`(?i)\b(?:ticket[\s#:]*)?(` + regexp.QuoteMeta(prefix) + `-\d{4})\b`)
	return &ChatService{
		Store:        store,
		Collection:   collection,
		Embedder:     embedder,
		Assistant:    assistant,
		Logger:       logger,
		HistoryLimit: defaultHistoryLimit,
		TopK:         defaultTopK,
		idPattern:    pattern,
	}
}

// Answer runs the pipeline for one question and logs both turns before
// returning. Retrieval and model failures are downgraded to a mode=error
// result so the caller always gets a conversational-shaped answer; history
// and turn-log failures propagate.
func (s *ChatService) Answer(ctx context.Context, sessionID, question string) (ChatResult, error) {
	chatContext, err := s.recentChatContext(ctx, sessionID)
	if err != nil {
		return ChatResult{}, err
	}

	result := s.resolve(ctx, chatContext, question)

	if err := s.Store.AppendChatExchange(ctx, sessionID, question, result.Response); err != nil {
		return ChatResult{}, err
	}
	return result, nil
}

func (s *ChatService) resolve(ctx context.Context, chatContext, question string) ChatResult {
	if ticketID, ok := s.ExtractTicketID(question); ok {
		if result, ok := s.answerByTicketID(ctx, chatContext, question, ticketID); ok {
			return result
		}
	}
	return s.answerBySimilarity(ctx, chatContext, question)
}

// ExtractTicketID scans the question for a ticket identifier, normalized to
// lowercase.
func (s *ChatService) ExtractTicketID(text string) (string, bool) {
	m := s.idPattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// answerByTicketID handles the direct-hit path. Any failure here, lookup or
// model, reports ok=false so the caller falls through to similarity search;
// an identifier not present in the collection degrades the same way rather
// than answering "ticket not found".
func (s *ChatService) answerByTicketID(ctx context.Context, chatContext, question, ticketID string) (ChatResult, bool) {
	record, found, err := s.Collection.GetByTicketID(ctx, ticketID)
	if err != nil {
		s.Logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("ticket id lookup failed, falling back to similarity search")
		return ChatResult{}, false
	}
	if !found {
		return ChatResult{}, false
	}

	prompt := fmt.Sprintf(
		"You are an expert IT support assistant.\n\n"+
			"--- Recent Chat ---\n%s\n\n"+
			"--- Requested Ticket ---\n%s\n\n"+
			"Now answer this user query:\n%q\n\n"+
			"Use only plain English. No markdown or hallucinations.",
		orPlaceholder(chatContext), ticketContext(record), question,
	)

	answer, err := s.Assistant.Ask(ctx, prompt)
	if err != nil {
		s.Logger.Warn().Err(err).Str("ticket_id", ticketID).Msg("assistant failed on ticket id match, falling back to similarity search")
		return ChatResult{}, false
	}

	return ChatResult{
		Response:      answer,
		SourceTickets: []vector.Record{record},
		ChatUsed:      chatContext,
		Mode:          ModeTicketIDMatch,
	}, true
}

func (s *ChatService) answerBySimilarity(ctx context.Context, chatContext, question string) ChatResult {
	topK := s.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	vectors, err := s.Embedder.Embed(ctx, []string{question})
	if err != nil {
		return s.errorResult(chatContext, err)
	}
	if len(vectors) != 1 {
		return s.errorResult(chatContext, fmt.Errorf("embedder returned %d vectors for one input", len(vectors)))
	}

	matches, err := s.Collection.Search(ctx, vectors[0], topK)
	if err != nil {
		return s.errorResult(chatContext, err)
	}
	if len(matches) == 0 {
		return ChatResult{
			Response:      NoRelevantTickets,
			SourceTickets: []vector.Record{},
			ChatUsed:      chatContext,
		}
	}

	var blocks strings.Builder
	for _, rec := range matches {
		blocks.WriteString(ticketContext(rec))
		blocks.WriteString("\n")
	}

	prompt := fmt.Sprintf(
		"You are an expert IT support assistant.\n\n"+
			"--- Recent Chat ---\n%s\n\n"+
			"--- Relevant Ticket Matches ---\n%s\n\n"+
			"Now answer this user query:\n%q\n\n"+
			"Use only plain English. Be concise, no markdown, no guessing.",
		orPlaceholder(chatContext), blocks.String(), question,
	)

	answer, err := s.Assistant.Ask(ctx, prompt)
	if err != nil {
		return s.errorResult(chatContext, err)
	}

	return ChatResult{
		Response:      answer,
		SourceTickets: matches,
		ChatUsed:      chatContext,
		Mode:          ModeRAGFallback,
	}
}

// errorResult is the always-answer-something downgrade: the failure rides in
// the response text and the HTTP layer still returns 200.
func (s *ChatService) errorResult(chatContext string, err error) ChatResult {
	s.Logger.Error().Err(err).Msg("chat similarity path failed")
	return ChatResult{
		Response:      fmt.Sprintf("Unexpected error: %s", err),
		SourceTickets: []vector.Record{},
		ChatUsed:      chatContext,
		Mode:          ModeError,
	}
}

// recentChatContext formats the last turns oldest-first for the prompt. A
// session with no history yields the empty string, not an error.
func (s *ChatService) recentChatContext(ctx context.Context, sessionID string) (string, error) {
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	turns, err := s.Store.RecentChatTurns(ctx, sessionID, limit)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := len(turns) - 1; i >= 0; i-- {
		who := "Assistant"
		if turns[i].Sender == models.SenderUser {
			who = "User"
		}
		b.WriteString(who)
		b.WriteString(": ")
		b.WriteString(turns[i].Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func orPlaceholder(chatContext string) string {
	if chatContext == "" {
		return "[No prior chat]"
	}
	return chatContext
}

func ticketContext(r vector.Record) string {
	return fmt.Sprintf(
		"- Ticket ID: %s\nTitle: %s\nStatus: %s\nReported Date: %s\nSummary: %s\nDescription: %s\nTriage: %s\nCategory: %s\nSolution: %s\n",
		r.TicketID, r.Title, r.Status, r.ReportedDate, r.Summary,
		r.Description, r.Triage, r.Category, r.Solution,
	)
}
