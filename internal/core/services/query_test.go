package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-docqa/internal/cache"
	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven/mocks"
)

// fixedEmbedProvider embeds every query to the same vector.
type fixedEmbedProvider struct {
	*mocks.MockProvider
	vec []float32
}

func (p *fixedEmbedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if _, err := p.MockProvider.Embed(ctx, text); err != nil {
		return nil, err
	}
	return p.vec, nil
}

func newQueryFixture(t *testing.T) (*fixedEmbedProvider, *mocks.MockDocumentStore, *cache.Cache[[]domain.SearchResult]) {
	t.Helper()
	inner := mocks.NewMockProvider()
	inner.SetDimensions(3)
	inner.Answer = "The alpha chunk answers the question."
	return &fixedEmbedProvider{MockProvider: inner, vec: []float32{1, 0, 0}}, seededStore(), cache.New[[]domain.SearchResult](cache.Config{})
}

func TestQueryService_EmptyQuery(t *testing.T) {
	provider, store, _ := newQueryFixture(t)
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store})

	_, err := svc.Query(context.Background(), "   ", domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueryService_Search_CachesRanking(t *testing.T) {
	provider, store, searchCache := newQueryFixture(t)
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store, SearchCache: searchCache})
	ctx := context.Background()

	first, err := svc.Search(ctx, "alpha", domain.SearchOptions{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 1, provider.EmbedCalls())

	// second page comes from the cached ranking
	second, err := svc.Search(ctx, "alpha", domain.SearchOptions{TopK: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, 1, provider.EmbedCalls())
	assert.Equal(t, 1, searchCache.Len())

	assert.NotEqual(t, texts(first), texts(second))
}

func TestQueryService_Search_ScopedToDocument(t *testing.T) {
	provider, store, _ := newQueryFixture(t)
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store})

	results, err := svc.Search(context.Background(), "alpha", domain.SearchOptions{DocumentID: "doc-b"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "doc-b", r.DocumentID)
	}

	all, err := svc.Search(context.Background(), "alpha", domain.SearchOptions{DocumentID: domain.AllDocumentID})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestQueryService_Search_EmbedFailureUsesZeroVector(t *testing.T) {
	provider, store, _ := newQueryFixture(t)
	provider.FailEmbed = true
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store})

	results, err := svc.Search(context.Background(), "alpha", domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestQueryService_Search_EmbedFailureNotCached(t *testing.T) {
	provider, store, searchCache := newQueryFixture(t)
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store, SearchCache: searchCache})
	ctx := context.Background()

	provider.FailEmbed = true
	degraded, err := svc.Search(ctx, "alpha", domain.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, degraded)
	assert.Equal(t, 0.0, degraded[0].Score)
	assert.Equal(t, 0, searchCache.Len())

	provider.FailEmbed = false
	recovered, err := svc.Search(ctx, "alpha", domain.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, recovered)
	assert.Greater(t, recovered[0].Score, 0.0)
	assert.Equal(t, 1, searchCache.Len())
	assert.Equal(t, 2, provider.EmbedCalls())
}

func TestQueryService_Query_NoResults(t *testing.T) {
	provider, _, _ := newQueryFixture(t)
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: mocks.NewMockDocumentStore()})

	result, err := svc.Query(context.Background(), "anything", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerNoResults, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Equal(t, 0, provider.GenerateCalls())
}

func TestQueryService_Query_Answers(t *testing.T) {
	provider, store, _ := newQueryFixture(t)
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store})

	result, err := svc.Query(context.Background(), "what does alpha say?", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "The alpha chunk answers the question.", result.Answer)
	assert.Equal(t, domain.AnswerSourceLocal, result.Source)
	assert.Equal(t, domain.ReasonExternalNotConfigured, result.SelectionReason)
	require.NotEmpty(t, result.Sources)
	assert.Len(t, result.Sources, 6)
}

func TestQueryService_Query_RerankReorders(t *testing.T) {
	provider, store, _ := newQueryFixture(t)
	var seen []string
	capture := &capturingProvider{MockProvider: provider.MockProvider, seen: &seen}
	arbiter := NewDualAnswerArbiter(ArbiterConfig{Local: capture})

	// similarity order for {1,0,0}: a1, b3, b1, a2, a3, b2
	provider.RerankScores = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store, Arbiter: arbiter})

	_, err := svc.Query(context.Background(), "question", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b2", "a3", "a2", "b1", "b3", "a1"}, seen)
}

func TestQueryService_Query_RerankFailureKeepsOrder(t *testing.T) {
	provider, store, _ := newQueryFixture(t)
	provider.FailRerank = true
	var seen []string
	arbiter := NewDualAnswerArbiter(ArbiterConfig{Local: &capturingProvider{MockProvider: provider.MockProvider, seen: &seen}})
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store, Arbiter: arbiter})

	_, err := svc.Query(context.Background(), "question", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b3", "b1", "a2", "a3", "b2"}, seen)
}

func TestQueryService_Query_ContextsCapped(t *testing.T) {
	provider, _, _ := newQueryFixture(t)
	store := mocks.NewMockDocumentStore()
	for i := 0; i < 12; i++ {
		store.AddChunks("doc-big", "Big", domain.ChunkData{Text: string(rune('a' + i)), Embedding: []float32{1, 0, 0}})
	}
	var seen []string
	arbiter := NewDualAnswerArbiter(ArbiterConfig{Local: &capturingProvider{MockProvider: provider.MockProvider, seen: &seen}})
	svc := NewQueryService(QueryServiceConfig{Provider: provider, Store: store, Arbiter: arbiter})

	result, err := svc.Query(context.Background(), "question", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, seen, domain.MaxContexts)
	assert.Len(t, result.Sources, domain.MaxContexts)
}

func TestQueryService_CacheStatsAndClear(t *testing.T) {
	provider, store, searchCache := newQueryFixture(t)
	embeddings := cache.New[[]float32](cache.Config{MaxSize: 10, TTL: 2 * time.Hour})
	embeddings.Put("hello", []float32{1})
	svc := NewQueryService(QueryServiceConfig{
		Provider:    provider,
		Store:       store,
		SearchCache: searchCache,
		Embeddings:  embeddings,
	})

	_, err := svc.Search(context.Background(), "alpha", domain.SearchOptions{})
	require.NoError(t, err)

	stats := svc.CacheStats()
	assert.Equal(t, 1, stats.EmbeddingCacheSize)
	assert.Equal(t, 1, stats.SearchCacheSize)
	assert.Equal(t, cache.DefaultMaxSize, stats.MaxCacheSize)
	assert.Equal(t, 3600, stats.CacheTTL)

	svc.ClearCache()
	stats = svc.CacheStats()
	assert.Equal(t, 0, stats.EmbeddingCacheSize)
	assert.Equal(t, 0, stats.SearchCacheSize)
}
