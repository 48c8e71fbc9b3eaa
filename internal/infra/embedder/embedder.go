// Package embedder provides the batch text-to-vector contract with two
// interchangeable implementations: a remote API embedder (OpenAI) and a
// local single-shot embedder (Ollama) that fans a batch out across workers.
package embedder

import (
	"context"
	"errors"
	"fmt"
)

// ErrRateLimited marks an embedding failure caused by provider rate limiting.
// The embedding scheduler backs off its cadence and shrinks its batches when
// it sees this kind.
var ErrRateLimited = errors.New("embedder rate limited")

// Embedder turns a batch of texts into fixed-dimension vectors.
// Implementations must return exactly one vector per input text, in input
// order, each of length Dimension().
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	ProviderName() string
}

// IsRateLimited reports whether err is a rate-limit-kind embedding failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// verifyVectors checks the batch shape every caller relies on: one vector per
// text, each of the declared dimension.
func verifyVectors(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has length %d, want %d", i, len(v), dim)
		}
	}
	return nil
}
