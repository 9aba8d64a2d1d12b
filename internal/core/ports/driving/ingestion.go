package driving

import (
	"context"
	"io"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// IngestionService accepts uploads and reports background progress
type IngestionService interface {
	// StartIngestion schedules a background run for the upload and returns its task ID immediately
	StartIngestion(ctx context.Context, content io.Reader, filename string) (string, error)

	// GetTaskStatus returns the task record, or the not_found sentinel for unknown IDs
	GetTaskStatus(ctx context.Context, taskID string) (*domain.Task, error)

	// CleanupTasks removes task records older than maxAge and returns how many were removed
	CleanupTasks(ctx context.Context, maxAge time.Duration) (int, error)
}
