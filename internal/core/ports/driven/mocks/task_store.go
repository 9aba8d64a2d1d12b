package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// MockTaskStore is a mock implementation of TaskStore for testing
type MockTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

// NewMockTaskStore creates a new MockTaskStore
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{tasks: make(map[string]domain.Task)}
}

func (m *MockTaskStore) Save(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = *task
	return nil
}

func (m *MockTaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *MockTaskStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, t := range m.tasks {
		if t.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MockTaskStore) Close() error {
	return nil
}
