package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint. The output
// dimensionality is fixed per deployment and validated on every response.
type HTTPEmbedder struct {
	BaseURL   string
	Model     string
	APIKey    string
	VectorDim int
	Client    *http.Client
}

func (e HTTPEmbedder) Dim() int {
	return e.VectorDim
}

func (e HTTPEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if strings.TrimSpace(e.BaseURL) == "" {
		return nil, fmt.Errorf("EMBED_BASE_URL is not set")
	}
	if strings.TrimSpace(e.Model) == "" {
		return nil, fmt.Errorf("EMBED_MODEL is not set")
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	payload := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{
		Model: e.Model,
		Input: inputs,
	}
	b, _ := json.Marshal(payload)
	url := strings.TrimRight(e.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(e.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return nil, fmt.Errorf("embeddings http error: %s: %v", resp.Status, errBody)
	}

	var res struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	if len(res.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings count mismatch: expected %d got %d", len(inputs), len(res.Data))
	}

	out := make([][]float32, len(inputs))
	for _, d := range res.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings index out of range: %d", d.Index)
		}
		if e.VectorDim > 0 && len(d.Embedding) != e.VectorDim {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d got %d", e.VectorDim, len(d.Embedding))
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i, vec := range out {
		if vec == nil {
			return nil, fmt.Errorf("embeddings response missing input %d", i)
		}
	}
	return out, nil
}
