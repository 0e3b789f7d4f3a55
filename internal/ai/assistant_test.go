package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompatAssistantAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "chat-test" || len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected request: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  The VPN is back up.  "}},
			},
		})
	}))
	defer srv.Close()

	a := OpenAICompatAssistant{BaseURL: srv.URL, Model: "chat-test", APIKey: "secret"}
	answer, err := a.Ask(context.Background(), "is the VPN back up?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "The VPN is back up." {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
}

func TestOpenAICompatAssistantEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	a := OpenAICompatAssistant{BaseURL: srv.URL, Model: "chat-test"}
	if _, err := a.Ask(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAICompatAssistantMissingConfig(t *testing.T) {
	a := OpenAICompatAssistant{}
	if _, err := a.Ask(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when base url is unset")
	}
}
