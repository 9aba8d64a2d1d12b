package ai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-docqa/internal/fallback"
)

// Ensure FallbackProvider implements CapabilityProvider
var _ driven.CapabilityProvider = (*FallbackProvider)(nil)

// FallbackProvider tries an ordered list of providers for rerank, summary
// and answer generation. Embeddings always come from the primary so every
// stored vector shares one space.
type FallbackProvider struct {
	providers []driven.CapabilityProvider
	logger    *slog.Logger
}

// NewFallbackProvider creates a FallbackProvider. The first provider is the primary.
func NewFallbackProvider(logger *slog.Logger, primary driven.CapabilityProvider, rest ...driven.CapabilityProvider) *FallbackProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProvider{
		providers: append([]driven.CapabilityProvider{primary}, rest...),
		logger:    logger,
	}
}

// Embed uses the primary only
func (p *FallbackProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.providers[0].Embed(ctx, text)
}

// EmbedBatch uses the primary only
func (p *FallbackProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return p.providers[0].EmbedBatch(ctx, texts)
}

// Rerank returns the first provider's scores that succeed
func (p *FallbackProvider) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	return run(ctx, p, "rerank", func(ctx context.Context, cp driven.CapabilityProvider) ([]float64, error) {
		return cp.Rerank(ctx, query, candidates)
	})
}

// Summarize returns the first summary that succeeds
func (p *FallbackProvider) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	return run(ctx, p, "summarize", func(ctx context.Context, cp driven.CapabilityProvider) (string, error) {
		return cp.Summarize(ctx, text, maxWords)
	})
}

// GenerateAnswer returns the first answer that succeeds
func (p *FallbackProvider) GenerateAnswer(ctx context.Context, query string, contexts []string) (string, error) {
	return run(ctx, p, "generate", func(ctx context.Context, cp driven.CapabilityProvider) (string, error) {
		return cp.GenerateAnswer(ctx, query, contexts)
	})
}

// Dimensions returns the primary's embedding size
func (p *FallbackProvider) Dimensions() int {
	return p.providers[0].Dimensions()
}

// Name returns the primary's name
func (p *FallbackProvider) Name() string {
	return p.providers[0].Name()
}

// HealthCheck checks the primary
func (p *FallbackProvider) HealthCheck(ctx context.Context) error {
	return p.providers[0].HealthCheck(ctx)
}

// Close closes every provider
func (p *FallbackProvider) Close() error {
	var errs []error
	for _, cp := range p.providers {
		if err := cp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func run[T any](ctx context.Context, p *FallbackProvider, op string, call func(context.Context, driven.CapabilityProvider) (T, error)) (T, error) {
	attempts := make([]fallback.Attempt[T], len(p.providers))
	for i, cp := range p.providers {
		attempts[i] = fallback.Attempt[T]{
			Name: cp.Name(),
			Run: func(ctx context.Context) (T, error) {
				return call(ctx, cp)
			},
		}
	}

	res := fallback.Run(ctx, attempts, nil)
	for _, o := range res.Trail {
		if o.Status == fallback.StatusFailed {
			p.logger.Warn("provider failed", "op", op, "provider", o.Name, "error", o.Err)
		}
	}
	if res.Status != fallback.StatusSuccess {
		var zero T
		return zero, res.LastErr()
	}
	return res.Value, nil
}
