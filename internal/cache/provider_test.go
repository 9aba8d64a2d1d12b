package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven/mocks"
)

func TestCachedProvider_Embed(t *testing.T) {
	inner := mocks.NewMockProvider()
	p := NewCachedProvider(inner, New[[]float32](Config{MaxSize: 10, TTL: time.Minute}))
	ctx := context.Background()

	v1, err := p.Embed(ctx, "hello")
	require.NoError(t, err)
	v2, err := p.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.EmbedCalls())
	assert.Equal(t, 1, p.Embeddings().Len())
}

func TestCachedProvider_EmbedErrorNotCached(t *testing.T) {
	inner := mocks.NewMockProvider()
	p := NewCachedProvider(inner, New[[]float32](Config{}))
	ctx := context.Background()

	inner.SetFailNext(true)
	_, err := p.Embed(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, 0, p.Embeddings().Len())

	_, err = p.Embed(ctx, "hello")
	require.NoError(t, err)
}

func TestCachedProvider_EmbedBatchOnlyMisses(t *testing.T) {
	inner := mocks.NewMockProvider()
	p := NewCachedProvider(inner, New[[]float32](Config{}))
	ctx := context.Background()

	cached, err := p.Embed(ctx, "b")
	require.NoError(t, err)

	vecs, err := p.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, cached, vecs[1])
	assert.Equal(t, []int{2}, inner.BatchSizes())

	// all hits: no further model call
	_, err = p.EmbedBatch(ctx, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, inner.BatchSizes())
}

func TestCachedProvider_EmbedBatchEmpty(t *testing.T) {
	p := NewCachedProvider(mocks.NewMockProvider(), New[[]float32](Config{}))
	vecs, err := p.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestCachedProvider_DelegatesOtherCapabilities(t *testing.T) {
	inner := mocks.NewMockProvider()
	inner.Answer = "forty-two"
	p := NewCachedProvider(inner, New[[]float32](Config{}))

	answer, err := p.GenerateAnswer(context.Background(), "q", []string{"ctx"})
	require.NoError(t, err)
	assert.Equal(t, "forty-two", answer)
	assert.Equal(t, 384, p.Dimensions())
	assert.Equal(t, "mock-provider", p.Name())
}
