package driven

import (
	"context"
)

// CapabilityProvider bundles the model capabilities the pipeline depends on.
// Local and remote variants are chosen once at startup by a factory.
type CapabilityProvider interface {
	// Embed generates an embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Rerank returns scores for each candidate, aligned with candidates
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)

	// Summarize condenses text to roughly maxWords words
	Summarize(ctx context.Context, text string, maxWords int) (string, error)

	// GenerateAnswer answers query from the given contexts
	GenerateAnswer(ctx context.Context, query string, contexts []string) (string, error)

	// Dimensions returns the fixed embedding dimension
	Dimensions() int

	// Name identifies the backend for logging
	Name() string

	// HealthCheck verifies the backend is usable
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the provider
	Close() error
}
