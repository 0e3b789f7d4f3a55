package ai

import "context"

// Assistant is a single-turn text completion: prompt in, answer out.
type Assistant interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Embedder turns a batch of texts into fixed-dimensionality vectors,
// one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Dim() int
}
