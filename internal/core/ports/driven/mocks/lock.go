package mocks

import (
	"context"
	"sync"
	"time"
)

// MockLock is an in-process DistributedLock
type MockLock struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired int

	// Busy makes every Acquire report the lock as taken elsewhere
	Busy bool
}

// NewMockLock creates a new MockLock
func NewMockLock() *MockLock {
	return &MockLock{held: make(map[string]bool)}
}

func (m *MockLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Busy || m.held[name] {
		return false, nil
	}
	m.held[name] = true
	m.acquired++
	return true, nil
}

func (m *MockLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}

// Acquired returns how many times the lock was taken
func (m *MockLock) Acquired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired
}
