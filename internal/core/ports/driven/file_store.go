package driven

import (
	"context"
	"io"
)

// FileStore holds uploaded files while they are being ingested
type FileStore interface {
	// Save writes content under a name scoped to taskID and returns its path
	Save(ctx context.Context, taskID, filename string, content io.Reader) (path string, size int64, err error)

	// Preserve copies a file into the failed-uploads area for inspection
	Preserve(ctx context.Context, path string) (string, error)

	// Remove deletes a stored file. Missing files are not an error.
	Remove(ctx context.Context, path string) error
}
