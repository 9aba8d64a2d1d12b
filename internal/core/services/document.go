package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driving"
)

// Ensure documentService implements DocumentService
var _ driving.DocumentService = (*documentService)(nil)

// documentService implements the DocumentService interface
type documentService struct {
	documentStore driven.DocumentStore
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(documentStore driven.DocumentStore) driving.DocumentService {
	return &documentService{documentStore: documentStore}
}

// Get retrieves a document by ID
func (s *documentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.documentStore.Get(ctx, id)
}

// GetWithChunks retrieves a document with its chunks in stored order
func (s *documentService) GetWithChunks(ctx context.Context, id string) (*domain.DocumentWithChunks, error) {
	doc, err := s.documentStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	stored, err := s.documentStore.ListChunks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	chunks := make([]*domain.Chunk, len(stored))
	for i, c := range stored {
		chunks[i] = &domain.Chunk{
			ID:         fmt.Sprintf("%s#%d", id, i),
			DocumentID: c.DocumentID,
			Position:   i,
			Text:       c.Text,
			Embedding:  c.Embedding,
		}
	}

	return &domain.DocumentWithChunks{
		Document: doc,
		Chunks:   chunks,
	}, nil
}

// Delete removes a document and its chunks
func (s *documentService) Delete(ctx context.Context, id string) error {
	return s.documentStore.Delete(ctx, id)
}

// List returns a page of summaries, newest first
func (s *documentService) List(ctx context.Context, offset, limit int) ([]*domain.DocumentSummary, error) {
	if limit <= 0 {
		limit = domain.DefaultListLimit
	}
	if offset < 0 || limit > domain.MaxListLimit {
		return nil, fmt.Errorf("%w: offset must be >= 0 and limit at most %d", domain.ErrInvalidInput, domain.MaxListLimit)
	}
	return s.documentStore.List(ctx, offset, limit)
}

// Count returns the total number of documents
func (s *documentService) Count(ctx context.Context) (int, error) {
	return s.documentStore.Count(ctx)
}

// Stats returns document, chunk and byte totals
func (s *documentService) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	return s.documentStore.Stats(ctx)
}
