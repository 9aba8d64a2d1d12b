package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore implements driven.DocumentStore using PostgreSQL.
// Embeddings are stored inline as REAL[] on each chunk row.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// CreateDocument inserts the document and its chunks in one transaction
func (s *DocumentStore) CreateDocument(ctx context.Context, title, content, summary string, chunks []domain.ChunkData) (string, error) {
	id := domain.GenerateDocumentID()

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, title, content, summary) VALUES ($1, $2, $3, $4)`,
			id, title, content, summary,
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("chunks", "document_id", "position", "text", "embedding"))
		if err != nil {
			return fmt.Errorf("prepare chunk copy: %w", err)
		}
		defer stmt.Close()

		for i, c := range chunks {
			if _, err := stmt.ExecContext(ctx, id, i, c.Text, pq.Float32Array(c.Embedding)); err != nil {
				return fmt.Errorf("copy chunk %d: %w", i, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("flush chunk copy: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateDocumentMetadata records file type and size
func (s *DocumentStore) UpdateDocumentMetadata(ctx context.Context, docID, fileType string, fileSize int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET file_type = $2, file_size = $3 WHERE id = $1`,
		docID, fileType, fileSize,
	)
	if err != nil {
		return fmt.Errorf("update document metadata: %w", err)
	}
	return requireRow(res)
}

// ListChunks returns chunks joined with their document titles, ordered by
// document then position
func (s *DocumentStore) ListChunks(ctx context.Context, docID string) ([]domain.StoredChunk, error) {
	query := `
		SELECT c.text, c.embedding, c.document_id, d.title
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE ($1 = '' OR c.document_id = $1)
		ORDER BY c.document_id, c.position
	`

	rows, err := s.db.QueryContext(ctx, query, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredChunk
	for rows.Next() {
		var (
			c   domain.StoredChunk
			emb pq.Float32Array
		)
		if err := rows.Scan(&c.Text, &emb, &c.DocumentID, &c.DocumentTitle); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding = []float32(emb)
		out = append(out, c)
	}
	return out, rows.Err()
}

// List returns summaries with chunk counts, newest first
func (s *DocumentStore) List(ctx context.Context, offset, limit int) ([]*domain.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.summary, d.file_type, d.file_size, d.created_at, COUNT(c.position)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []*domain.DocumentSummary{}
	for rows.Next() {
		var d domain.DocumentSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.Summary, &d.FileType, &d.FileSize, &d.CreatedAt, &d.ChunksCount); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, summary, file_type, file_size, created_at
		FROM documents
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Summary, &doc.FileType, &doc.FileSize, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Delete deletes a document; its chunks cascade
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireRow(res)
}

// Count returns total document count
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Stats returns document, chunk and byte totals
func (s *DocumentStore) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	var stats domain.DocumentStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COALESCE(SUM(file_size), 0) FROM documents)
	`).Scan(&stats.Documents, &stats.Chunks, &stats.TotalFileSize)
	if err != nil {
		return nil, fmt.Errorf("document stats: %w", err)
	}
	return &stats, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
