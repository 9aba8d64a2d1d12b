// Package storetest holds behaviour tests shared by every DocumentStore
// and TaskStore implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// RunDocumentStore exercises a DocumentStore. newStore must return an empty store.
func RunDocumentStore(t *testing.T, newStore func(t *testing.T) driven.DocumentStore) {
	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.CreateDocument(ctx, "guide.pdf", "full text", "short", []domain.ChunkData{
			{Text: "first", Embedding: []float32{1, 0, 0}},
			{Text: "second", Embedding: []float32{0, 1, 0}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "guide.pdf", doc.Title)
		assert.Equal(t, "full text", doc.Content)
		assert.Equal(t, "short", doc.Summary)
		assert.False(t, doc.CreatedAt.IsZero())

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := newStore(t).Get(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("UpdateMetadata", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.CreateDocument(ctx, "notes.txt", "x", "", nil)
		require.NoError(t, err)
		require.NoError(t, store.UpdateDocumentMetadata(ctx, id, "text/plain", 42))

		doc, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "text/plain", doc.FileType)
		assert.Equal(t, int64(42), doc.FileSize)

		assert.ErrorIs(t, store.UpdateDocumentMetadata(ctx, "missing", "text/plain", 1), domain.ErrNotFound)
	})

	t.Run("ListChunks", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a, err := store.CreateDocument(ctx, "a.txt", "a", "", []domain.ChunkData{
			{Text: "a0", Embedding: []float32{1, 0}},
			{Text: "a1", Embedding: []float32{0.5, 0.5}},
		})
		require.NoError(t, err)
		b, err := store.CreateDocument(ctx, "b.txt", "b", "", []domain.ChunkData{
			{Text: "b0", Embedding: []float32{0, 1}},
		})
		require.NoError(t, err)

		all, err := store.ListChunks(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		texts := []string{all[0].Text, all[1].Text, all[2].Text}
		assert.ElementsMatch(t, []string{"a0", "a1", "b0"}, texts)

		only, err := store.ListChunks(ctx, b)
		require.NoError(t, err)
		require.Len(t, only, 1)
		assert.Equal(t, "b0", only[0].Text)
		assert.Equal(t, b, only[0].DocumentID)
		assert.Equal(t, "b.txt", only[0].DocumentTitle)
		assert.InDeltaSlice(t, []float32{0, 1}, only[0].Embedding, 1e-6)

		ofA, err := store.ListChunks(ctx, a)
		require.NoError(t, err)
		require.Len(t, ofA, 2)
		assert.Equal(t, "a0", ofA[0].Text, "chunks keep their position order")
		assert.Equal(t, "a1", ofA[1].Text)
		assert.InDeltaSlice(t, []float32{0.5, 0.5}, ofA[1].Embedding, 1e-6)

		none, err := store.ListChunks(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		empty, err := store.List(ctx, 0, 10)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		var ids []string
		for i, title := range []string{"one.txt", "two.txt", "three.txt"} {
			chunks := make([]domain.ChunkData, i+1)
			for j := range chunks {
				chunks[j] = domain.ChunkData{Text: title, Embedding: []float32{1}}
			}
			id, err := store.CreateDocument(ctx, title, "body", "sum "+title, chunks)
			require.NoError(t, err)
			require.NoError(t, store.UpdateDocumentMetadata(ctx, id, "text/plain", int64(10*(i+1))))
			ids = append(ids, id)
		}

		all, err := store.List(ctx, 0, 10)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})
		assert.Equal(t, "three.txt", all[0].Title)
		assert.Equal(t, "sum three.txt", all[0].Summary)
		assert.Equal(t, "text/plain", all[0].FileType)
		assert.Equal(t, int64(30), all[0].FileSize)
		assert.Equal(t, 3, all[0].ChunksCount)
		assert.Equal(t, 1, all[2].ChunksCount)
		assert.False(t, all[0].CreatedAt.IsZero())

		page, err := store.List(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, ids[1], page[0].ID)

		past, err := store.List(ctx, 5, 10)
		require.NoError(t, err)
		assert.Empty(t, past)
	})

	t.Run("Stats", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStats{}, *stats)

		a, err := store.CreateDocument(ctx, "a.txt", "a", "", []domain.ChunkData{
			{Text: "a0", Embedding: []float32{1}},
			{Text: "a1", Embedding: []float32{1}},
		})
		require.NoError(t, err)
		require.NoError(t, store.UpdateDocumentMetadata(ctx, a, "text/plain", 100))
		b, err := store.CreateDocument(ctx, "b.txt", "b", "", []domain.ChunkData{{Text: "b0", Embedding: []float32{1}}})
		require.NoError(t, err)
		require.NoError(t, store.UpdateDocumentMetadata(ctx, b, "text/plain", 23))

		stats, err = store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Documents)
		assert.Equal(t, 3, stats.Chunks)
		assert.Equal(t, int64(123), stats.TotalFileSize)

		require.NoError(t, store.Delete(ctx, a))
		stats, err = store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStats{Documents: 1, Chunks: 1, TotalFileSize: 23}, *stats)
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.CreateDocument(ctx, "gone.txt", "x", "", []domain.ChunkData{{Text: "c", Embedding: []float32{1}}})
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, id))

		_, err = store.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		chunks, err := store.ListChunks(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, chunks)
		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)

		assert.ErrorIs(t, store.Delete(ctx, id), domain.ErrNotFound)
	})
}

// RunTaskStore exercises a TaskStore. newStore must return an empty store.
func RunTaskStore(t *testing.T, newStore func(t *testing.T) driven.TaskStore) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("SaveAndGet", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		task := &domain.Task{
			ID:        "t1",
			Status:    domain.TaskStatusCompleted,
			Progress:  100,
			Message:   "done",
			Result:    &domain.TaskResult{DocumentID: "d1", ChunksCount: 2},
			UpdatedAt: base,
		}
		require.NoError(t, store.Save(ctx, task))

		got, err := store.Get(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, got.Status)
		assert.Equal(t, 100, got.Progress)
		require.NotNil(t, got.Result)
		assert.Equal(t, "d1", got.Result.DocumentID)
		assert.True(t, base.Equal(got.UpdatedAt))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := newStore(t).Get(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("DeleteOlderThan", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, &domain.Task{ID: "old", Status: domain.TaskStatusProcessing, UpdatedAt: base}))
		require.NoError(t, store.Save(ctx, &domain.Task{ID: "new", Status: domain.TaskStatusCompleted, UpdatedAt: base.Add(2 * time.Hour)}))

		removed, err := store.DeleteOlderThan(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = store.Get(ctx, "old")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = store.Get(ctx, "new")
		assert.NoError(t, err)
	})
}
