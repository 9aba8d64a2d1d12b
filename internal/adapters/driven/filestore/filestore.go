// Package filestore keeps uploaded files on local disk while they are ingested.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FileStore = (*Store)(nil)

// FailedDir is the subdirectory of the upload root holding preserved failures
const FailedDir = "failed_uploads"

// Store writes uploads as <root>/<taskID>_<filename>.
type Store struct {
	root string
}

// New creates the upload root and its failed-uploads area.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: upload directory is required", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, FailedDir), 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute upload directory
func (s *Store) Root() string {
	return s.root
}

// Save streams content to disk. A partially written file is removed on error.
func (s *Store) Save(ctx context.Context, taskID, filename string, content io.Reader) (string, int64, error) {
	name := filepath.Base(taskID + "_" + filename)
	if name != taskID+"_"+filename || strings.ContainsAny(name, `/\`) {
		return "", 0, fmt.Errorf("%w: unsafe filename %q", domain.ErrInvalidInput, filename)
	}
	path := filepath.Join(s.root, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(f, readerWithContext{ctx: ctx, r: content})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}
	return path, n, nil
}

// Preserve copies a file into the failed-uploads area and returns the copy's path.
func (s *Store) Preserve(ctx context.Context, path string) (string, error) {
	if err := s.contains(path); err != nil {
		return "", err
	}
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst := filepath.Join(s.root, FailedDir, filepath.Base(path))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create preserved copy: %w", err)
	}
	if _, err := io.Copy(out, readerWithContext{ctx: ctx, r: src}); err != nil {
		out.Close()
		return "", fmt.Errorf("copy upload: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close preserved copy: %w", err)
	}
	return dst, nil
}

// Remove deletes a stored upload. Missing files are ignored.
func (s *Store) Remove(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := s.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// contains rejects paths outside the upload root
func (s *Store) contains(path string) error {
	rel, err := filepath.Rel(s.root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: path %q is outside the upload directory", domain.ErrInvalidInput, path)
	}
	return nil
}

// readerWithContext stops a copy once ctx is done
type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
