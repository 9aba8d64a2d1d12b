package driven

import (
	"context"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// DocumentStore persists documents with their chunks and embeddings
type DocumentStore interface {
	// CreateDocument stores a document and all its chunks atomically.
	// Returns the new document ID.
	CreateDocument(ctx context.Context, title, content, summary string, chunks []domain.ChunkData) (string, error)

	// UpdateDocumentMetadata records file type and size after creation
	UpdateDocumentMetadata(ctx context.Context, docID, fileType string, fileSize int64) error

	// ListChunks returns every stored chunk, or only docID's chunks when docID is non-empty
	ListChunks(ctx context.Context, docID string) ([]domain.StoredChunk, error)

	// List returns document summaries, newest first
	List(ctx context.Context, offset, limit int) ([]*domain.DocumentSummary, error)

	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Delete deletes a document and its chunks
	Delete(ctx context.Context, id string) error

	// Count returns total document count
	Count(ctx context.Context) (int, error)

	// Stats returns document, chunk and byte totals
	Stats(ctx context.Context) (*domain.DocumentStats, error)
}
