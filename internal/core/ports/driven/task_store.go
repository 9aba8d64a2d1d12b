package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// TaskStore holds ingestion task records.
// Implementations can be in-process (default) or Redis-backed.
type TaskStore interface {
	// Save creates or overwrites a task record
	Save(ctx context.Context, task *domain.Task) error

	// Get retrieves a task by ID. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// DeleteOlderThan removes records last updated before cutoff, regardless of status.
	// Returns the number removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases resources.
	Close() error
}
