package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// MockAnswerGenerator is a mock implementation of AnswerGenerator for testing
type MockAnswerGenerator struct {
	mu     sync.Mutex
	Answer string
	Err    error
	// Hang blocks Generate until ctx is done
	Hang  bool
	calls int
}

// NewMockAnswerGenerator creates a generator that always returns answer
func NewMockAnswerGenerator(answer string) *MockAnswerGenerator {
	return &MockAnswerGenerator{Answer: answer}
}

func (m *MockAnswerGenerator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	m.mu.Lock()
	m.calls++
	hang := m.Hang
	m.mu.Unlock()
	if hang {
		<-ctx.Done()
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Answer, nil
}

func (m *MockAnswerGenerator) Model() string {
	return "mock-chat-model"
}

// Calls returns the number of Generate calls
func (m *MockAnswerGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockAnswerJudge is a mock implementation of AnswerJudge for testing
type MockAnswerJudge struct {
	mu sync.Mutex
	// Raw is parsed with domain.ParseVerdict when Err is nil
	Raw string
	Err error
	// Hang blocks Judge until ctx is done
	Hang  bool
	calls int
}

// NewMockAnswerJudge creates a judge that replies with raw verdict text
func NewMockAnswerJudge(raw string) *MockAnswerJudge {
	return &MockAnswerJudge{Raw: raw}
}

func (m *MockAnswerJudge) Judge(ctx context.Context, query, answerA, answerB string) (domain.Verdict, error) {
	m.mu.Lock()
	m.calls++
	hang := m.Hang
	m.mu.Unlock()
	if hang {
		<-ctx.Done()
		return domain.Verdict{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.Verdict{}, m.Err
	}
	return domain.ParseVerdict(m.Raw), nil
}

// Calls returns the number of Judge calls
func (m *MockAnswerJudge) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
