package mocks

import (
	"context"
	"io"
	"sync"
)

// MockFileStore keeps uploads in memory
type MockFileStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	preserved []string
	removed   []string

	// FailSave makes Save fail
	FailSave bool
}

// NewMockFileStore creates a new MockFileStore
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{files: make(map[string][]byte)}
}

func (m *MockFileStore) Save(ctx context.Context, taskID, filename string, content io.Reader) (string, int64, error) {
	if m.FailSave {
		return "", 0, ErrMockFailure
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", 0, err
	}
	path := taskID + "_" + filename
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = data
	return path, int64(len(data)), nil
}

func (m *MockFileStore) Preserve(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preserved = append(m.preserved, path)
	return "failed_uploads/" + path, nil
}

func (m *MockFileStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

// Content returns the stored bytes for path
func (m *MockFileStore) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	return b, ok
}

// Preserved returns paths passed to Preserve
func (m *MockFileStore) Preserved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.preserved...)
}

// Removed returns paths passed to Remove
func (m *MockFileStore) Removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}
