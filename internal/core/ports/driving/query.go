package driving

import (
	"context"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// QueryService answers questions over ingested documents
type QueryService interface {
	// Query retrieves relevant chunks and arbitrates an answer
	Query(ctx context.Context, query string, opts domain.SearchOptions) (*domain.DualAnswerResult, error)

	// Search returns one page of ranked chunks without generating an answer
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// CacheStats reports embedding and search cache sizes
	CacheStats() domain.CacheStats

	// ClearCache empties both caches
	ClearCache()
}
