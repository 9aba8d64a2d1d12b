// Package memory provides in-process store implementations. Nothing
// survives a restart; they back the default configuration and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps documents and their chunks in maps guarded by one lock.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*domain.Document
	chunks    map[string][]domain.ChunkData
	now       func() time.Time
}

// NewDocumentStore creates an empty in-memory DocumentStore
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*domain.Document),
		chunks:    make(map[string][]domain.ChunkData),
		now:       time.Now,
	}
}

// CreateDocument stores a document and its chunks in one step
func (s *DocumentStore) CreateDocument(ctx context.Context, title, content, summary string, chunks []domain.ChunkData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := domain.GenerateDocumentID()
	stored := make([]domain.ChunkData, len(chunks))
	for i, c := range chunks {
		stored[i] = domain.ChunkData{Text: c.Text, Embedding: append([]float32(nil), c.Embedding...)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[id] = &domain.Document{
		ID:        id,
		Title:     title,
		Content:   content,
		Summary:   summary,
		CreatedAt: s.now(),
	}
	s.chunks[id] = stored
	return id, nil
}

// UpdateDocumentMetadata records file type and size
func (s *DocumentStore) UpdateDocumentMetadata(ctx context.Context, docID, fileType string, fileSize int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[docID]
	if !ok {
		return domain.ErrNotFound
	}
	doc.FileType = fileType
	doc.FileSize = fileSize
	return nil
}

// ListChunks returns chunks ordered by document ID then position.
// Document IDs sort by creation time.
func (s *DocumentStore) ListChunks(ctx context.Context, docID string) ([]domain.StoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		if docID == "" || id == docID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var out []domain.StoredChunk
	for _, id := range ids {
		title := s.documents[id].Title
		for _, c := range s.chunks[id] {
			out = append(out, domain.StoredChunk{
				Text:          c.Text,
				Embedding:     c.Embedding,
				DocumentID:    id,
				DocumentTitle: title,
			})
		}
	}
	return out, nil
}

// List returns summaries newest first. Document IDs sort by creation time.
func (s *DocumentStore) List(ctx context.Context, offset, limit int) ([]*domain.DocumentSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	if offset >= len(ids) {
		return []*domain.DocumentSummary{}, nil
	}
	ids = ids[offset:min(offset+limit, len(ids))]

	out := make([]*domain.DocumentSummary, len(ids))
	for i, id := range ids {
		doc := s.documents[id]
		out[i] = &domain.DocumentSummary{
			ID:          doc.ID,
			Title:       doc.Title,
			Summary:     doc.Summary,
			FileType:    doc.FileType,
			FileSize:    doc.FileSize,
			ChunksCount: len(s.chunks[id]),
			CreatedAt:   doc.CreatedAt,
		}
	}
	return out, nil
}

// Get retrieves a copy of a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// Delete removes a document and its chunks
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// Count returns the number of stored documents
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

// Stats sums chunks and file sizes across all documents
func (s *DocumentStore) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &domain.DocumentStats{Documents: len(s.documents)}
	for id, doc := range s.documents {
		stats.Chunks += len(s.chunks[id])
		stats.TotalFileSize += doc.FileSize
	}
	return stats, nil
}
