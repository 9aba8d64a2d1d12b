package driving

import (
	"context"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// DocumentService provides access to ingested documents
type DocumentService interface {
	// Get retrieves a document by ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetWithChunks retrieves a document with its chunks
	GetWithChunks(ctx context.Context, id string) (*domain.DocumentWithChunks, error)

	// Delete removes a document and its chunks
	Delete(ctx context.Context, id string) error

	// List returns a page of document summaries, newest first.
	// A non-positive limit selects DefaultListLimit.
	List(ctx context.Context, offset, limit int) ([]*domain.DocumentSummary, error)

	// Count returns the total number of documents
	Count(ctx context.Context) (int, error)

	// Stats returns document, chunk and byte totals
	Stats(ctx context.Context) (*domain.DocumentStats, error)
}
