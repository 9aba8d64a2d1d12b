package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// MockDocumentStore is a mock implementation of DocumentStore for testing
type MockDocumentStore struct {
	mu        sync.RWMutex
	nextID    int
	documents map[string]*domain.Document
	chunks    map[string][]domain.ChunkData
	order     []string

	// FailCreate makes CreateDocument fail
	FailCreate bool
	// FailList makes ListChunks fail
	FailList bool
	// FailStats makes List and Stats fail
	FailStats bool
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		documents: make(map[string]*domain.Document),
		chunks:    make(map[string][]domain.ChunkData),
	}
}

func (m *MockDocumentStore) CreateDocument(ctx context.Context, title, content, summary string, chunks []domain.ChunkData) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate {
		return "", ErrMockFailure
	}
	m.nextID++
	id := fmt.Sprintf("doc-%d", m.nextID)
	m.documents[id] = &domain.Document{ID: id, Title: title, Content: content, Summary: summary}
	m.chunks[id] = append([]domain.ChunkData(nil), chunks...)
	m.order = append(m.order, id)
	return id, nil
}

func (m *MockDocumentStore) UpdateDocumentMetadata(ctx context.Context, docID, fileType string, fileSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[docID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.FileType = fileType
	doc.FileSize = fileSize
	return nil
}

func (m *MockDocumentStore) ListChunks(ctx context.Context, docID string) ([]domain.StoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailList {
		return nil, ErrMockFailure
	}
	var out []domain.StoredChunk
	for _, id := range m.order {
		if docID != "" && id != docID {
			continue
		}
		doc, ok := m.documents[id]
		if !ok {
			continue
		}
		for _, c := range m.chunks[id] {
			out = append(out, domain.StoredChunk{
				Text:          c.Text,
				Embedding:     c.Embedding,
				DocumentID:    id,
				DocumentTitle: doc.Title,
			})
		}
	}
	return out, nil
}

func (m *MockDocumentStore) List(ctx context.Context, offset, limit int) ([]*domain.DocumentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailStats {
		return nil, ErrMockFailure
	}
	out := []*domain.DocumentSummary{}
	for i := len(m.order) - 1; i >= 0; i-- {
		doc, ok := m.documents[m.order[i]]
		if !ok {
			continue
		}
		out = append(out, &domain.DocumentSummary{
			ID:          doc.ID,
			Title:       doc.Title,
			Summary:     doc.Summary,
			FileType:    doc.FileType,
			FileSize:    doc.FileSize,
			ChunksCount: len(m.chunks[doc.ID]),
		})
	}
	if offset >= len(out) {
		return []*domain.DocumentSummary{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
	delete(m.chunks, id)
	return nil
}

func (m *MockDocumentStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.documents), nil
}

func (m *MockDocumentStore) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailStats {
		return nil, ErrMockFailure
	}
	stats := &domain.DocumentStats{Documents: len(m.documents)}
	for id, doc := range m.documents {
		stats.Chunks += len(m.chunks[id])
		stats.TotalFileSize += doc.FileSize
	}
	return stats, nil
}

// Chunks returns the chunks stored for a document
func (m *MockDocumentStore) Chunks(docID string) []domain.ChunkData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks[docID]
}

// AddChunks seeds a document with pre-embedded chunks
func (m *MockDocumentStore) AddChunks(docID, title string, chunks ...domain.ChunkData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[docID]; !ok {
		m.documents[docID] = &domain.Document{ID: docID, Title: title}
		m.order = append(m.order, docID)
	}
	m.chunks[docID] = append(m.chunks[docID], chunks...)
}
