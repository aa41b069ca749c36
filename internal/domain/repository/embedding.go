package repository

import "context"

// EmbeddingClient generates dense embeddings from text.
type EmbeddingClient interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}
