// Package ai holds the embedding providers usable in place of the
// embedder service.
package ai

import "context"

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}
