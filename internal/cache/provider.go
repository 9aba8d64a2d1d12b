package cache

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CapabilityProvider = (*CachedProvider)(nil)

// CachedProvider wraps a CapabilityProvider so embeddings of previously
// seen texts are served from an embedding cache. Model calls run without
// holding the cache lock; results are cached afterwards.
type CachedProvider struct {
	driven.CapabilityProvider
	embeddings *Cache[[]float32]
}

// NewCachedProvider creates a caching decorator around inner.
func NewCachedProvider(inner driven.CapabilityProvider, embeddings *Cache[[]float32]) *CachedProvider {
	return &CachedProvider{
		CapabilityProvider: inner,
		embeddings:         embeddings,
	}
}

// Embeddings returns the underlying embedding cache.
func (p *CachedProvider) Embeddings() *Cache[[]float32] {
	return p.embeddings
}

// Embed returns a cached embedding if available, otherwise computes and caches.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := p.embeddings.Get(text); ok {
		return vec, nil
	}

	vec, err := p.CapabilityProvider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	p.embeddings.Put(text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache, preserving input order.
func (p *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if vec, ok := p.embeddings.Get(text); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	vecs, err := p.CapabilityProvider.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embed batch: got %d vectors for %d texts", len(vecs), len(missTexts))
	}

	for j, i := range missIdx {
		results[i] = vecs[j]
		p.embeddings.Put(missTexts[j], vecs[j])
	}
	return results, nil
}
