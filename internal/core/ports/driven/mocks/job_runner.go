package mocks

import (
	"context"
	"sync"
)

// MockJobRunner runs every job synchronously inside Submit
type MockJobRunner struct {
	mu    sync.Mutex
	names []string

	// Err is returned by Submit instead of running the job
	Err error
}

// NewMockJobRunner creates a new MockJobRunner
func NewMockJobRunner() *MockJobRunner {
	return &MockJobRunner{}
}

func (m *MockJobRunner) Submit(ctx context.Context, name string, job func(ctx context.Context)) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	m.names = append(m.names, name)
	m.mu.Unlock()
	job(context.Background())
	return nil
}

// Names returns the names of submitted jobs
func (m *MockJobRunner) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}
