package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven/mocks"
)

func TestDocumentService_Get(t *testing.T) {
	documentStore := mocks.NewMockDocumentStore()
	svc := NewDocumentService(documentStore)

	id, err := documentStore.CreateDocument(context.Background(), "Test Document", "body", "summary", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Title != "Test Document" {
		t.Errorf("expected title %q, got %q", "Test Document", result.Title)
	}

	_, err = svc.Get(context.Background(), "non-existent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentService_GetWithChunks(t *testing.T) {
	documentStore := mocks.NewMockDocumentStore()
	svc := NewDocumentService(documentStore)

	documentStore.AddChunks("doc-a", "Handbook",
		domain.ChunkData{Text: "first", Embedding: []float32{1, 0}},
		domain.ChunkData{Text: "second", Embedding: []float32{0, 1}},
	)
	documentStore.AddChunks("doc-b", "Other", domain.ChunkData{Text: "unrelated"})

	result, err := svc.GetWithChunks(context.Background(), "doc-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Document.ID != "doc-a" {
		t.Errorf("expected document doc-a, got %s", result.Document.ID)
	}
	if len(result.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(result.Chunks))
	}
	for i, want := range []string{"first", "second"} {
		if result.Chunks[i].Text != want {
			t.Errorf("chunk %d: expected %q, got %q", i, want, result.Chunks[i].Text)
		}
		if result.Chunks[i].Position != i {
			t.Errorf("chunk %d: expected position %d, got %d", i, i, result.Chunks[i].Position)
		}
	}

	_, err = svc.GetWithChunks(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentService_GetWithChunks_ListError(t *testing.T) {
	documentStore := mocks.NewMockDocumentStore()
	documentStore.AddChunks("doc-a", "Handbook", domain.ChunkData{Text: "first"})
	documentStore.FailList = true
	svc := NewDocumentService(documentStore)

	_, err := svc.GetWithChunks(context.Background(), "doc-a")
	if !errors.Is(err, mocks.ErrMockFailure) {
		t.Errorf("expected wrapped mock failure, got %v", err)
	}
}

func TestDocumentService_DeleteAndCount(t *testing.T) {
	documentStore := mocks.NewMockDocumentStore()
	svc := NewDocumentService(documentStore)
	ctx := context.Background()

	id, _ := documentStore.CreateDocument(ctx, "One", "", "", nil)
	_, _ = documentStore.CreateDocument(ctx, "Two", "", "", nil)

	count, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 documents, got %d", count)
	}

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, _ = svc.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 document after delete, got %d", count)
	}
}

func TestDocumentService_List(t *testing.T) {
	documentStore := mocks.NewMockDocumentStore()
	svc := NewDocumentService(documentStore)
	ctx := context.Background()

	for _, title := range []string{"One", "Two", "Three"} {
		if _, err := documentStore.CreateDocument(ctx, title, "", "", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err := svc.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 documents with the default limit, got %d", len(all))
	}
	if all[0].Title != "Three" {
		t.Errorf("expected newest document first, got %q", all[0].Title)
	}

	page, err := svc.List(ctx, 2, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 1 || page[0].Title != "One" {
		t.Errorf("expected only the oldest document, got %+v", page)
	}

	if _, err := svc.List(ctx, -1, 10); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative offset, got %v", err)
	}
	if _, err := svc.List(ctx, 0, domain.MaxListLimit+1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for oversized limit, got %v", err)
	}
}

func TestDocumentService_Stats(t *testing.T) {
	documentStore := mocks.NewMockDocumentStore()
	svc := NewDocumentService(documentStore)
	ctx := context.Background()

	id, _ := documentStore.CreateDocument(ctx, "One", "", "", []domain.ChunkData{{Text: "a"}, {Text: "b"}})
	_ = documentStore.UpdateDocumentMetadata(ctx, id, "text/plain", 512)
	_, _ = documentStore.CreateDocument(ctx, "Two", "", "", []domain.ChunkData{{Text: "c"}})

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Documents != 2 || stats.Chunks != 3 || stats.TotalFileSize != 512 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if avg := stats.AvgChunksPerDocument(); avg != 1.5 {
		t.Errorf("expected 1.5 chunks per document, got %v", avg)
	}

	if avg := (domain.DocumentStats{}).AvgChunksPerDocument(); avg != 0 {
		t.Errorf("expected 0 for an empty store, got %v", avg)
	}
}
