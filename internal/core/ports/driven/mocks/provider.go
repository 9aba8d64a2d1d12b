package mocks

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
)

// ErrMockFailure is returned by mocks configured to fail
var ErrMockFailure = errors.New("mock failure")

// MockProvider is a mock implementation of CapabilityProvider for testing
type MockProvider struct {
	mu         sync.Mutex
	dimensions int
	name       string
	failNext   bool

	// FailEmbed makes every Embed/EmbedBatch call fail
	FailEmbed bool
	// FailRerank makes every Rerank call fail
	FailRerank bool
	// FailSummarize makes every Summarize call fail
	FailSummarize bool
	// FailGenerate makes every GenerateAnswer call fail
	FailGenerate bool

	// Answer is returned by GenerateAnswer when set
	Answer string
	// RerankScores is returned by Rerank when set
	RerankScores []float64

	embedCalls    int
	batchSizes    []int
	generateCalls int
}

// NewMockProvider creates a new MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		dimensions: 384,
		name:       "mock-provider",
	}
}

func (m *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.shouldFail(m.FailEmbed) {
		return nil, context.DeadlineExceeded
	}
	return m.generateEmbedding(text), nil
}

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.shouldFail(m.FailEmbed) {
		return nil, context.DeadlineExceeded
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockProvider) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRerank {
		return nil, ErrMockFailure
	}
	if m.RerankScores != nil {
		return m.RerankScores, nil
	}
	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = 1
	}
	return scores, nil
}

func (m *MockProvider) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	if m.FailSummarize {
		return "", ErrMockFailure
	}
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " "), nil
}

func (m *MockProvider) GenerateAnswer(ctx context.Context, query string, contexts []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateCalls++
	if m.FailGenerate {
		return "", ErrMockFailure
	}
	if m.Answer != "" {
		return m.Answer, nil
	}
	if len(contexts) == 0 {
		return "", nil
	}
	return contexts[0], nil
}

func (m *MockProvider) Dimensions() int {
	return m.dimensions
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockProvider) Close() error {
	return nil
}

func (m *MockProvider) shouldFail(always bool) bool {
	if m.failNext {
		m.failNext = false
		return true
	}
	return always
}

// generateEmbedding generates a deterministic embedding based on text hash
func (m *MockProvider) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

func (m *MockProvider) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

func (m *MockProvider) SetDimensions(dim int) {
	m.dimensions = dim
}

func (m *MockProvider) SetName(name string) {
	m.name = name
}

// EmbedCalls returns how many single-text embeddings were requested
func (m *MockProvider) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// BatchSizes returns the size of every EmbedBatch call in order
func (m *MockProvider) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.batchSizes))
	copy(out, m.batchSizes)
	return out
}

// GenerateCalls returns how many answers were requested
func (m *MockProvider) GenerateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateCalls
}
