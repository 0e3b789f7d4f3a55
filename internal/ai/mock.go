package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// MockEmbedder produces deterministic vectors without an embedding service.
// Identical input always yields the identical vector, which is the only
// property the pipeline relies on.
type MockEmbedder struct {
	VectorDim int
}

func (m MockEmbedder) Dim() int {
	return m.VectorDim
}

func (m MockEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	dim := m.VectorDim
	if dim <= 0 {
		dim = 768
	}
	out := make([][]float32, len(inputs))
	for i, text := range inputs {
		seed := hashStringToUint64(text)
		vec := make([]float32, dim)
		for j := range vec {
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[j] = float32(int64(seed>>33))/float32(1<<30) - 1
		}
		out[i] = vec
	}
	return out, nil
}

// MockAssistant answers with a short summary of the prompt it was given.
type MockAssistant struct {
	ModelVersion string
}

func (m MockAssistant) Ask(ctx context.Context, prompt string) (string, error) {
	lines := strings.Split(prompt, "\n")
	query := ""
	for i, line := range lines {
		if strings.HasPrefix(line, "Now answer this user query:") && i+1 < len(lines) {
			query = strings.Trim(lines[i+1], "\" ")
			break
		}
	}
	if query == "" {
		query = "your question"
	}
	return fmt.Sprintf("Based on the ticket context provided, here is what I found about %s. (%s)", query, m.ModelVersion), nil
}

func hashStringToUint64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
