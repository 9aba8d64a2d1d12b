// Package sqlite provides a DocumentStore backed by an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	file_type TEXT NOT NULL DEFAULT '',
	file_size INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

CREATE TABLE IF NOT EXISTS chunks (
	document_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY(document_id, position),
	FOREIGN KEY(document_id) REFERENCES documents(id) ON DELETE CASCADE
);
`

// DocumentStore implements driven.DocumentStore on SQLite.
// Embeddings are stored as little-endian float32 blobs.
type DocumentStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path with WAL and foreign keys enabled.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*DocumentStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DocumentStore{db: db, now: time.Now}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// CreateDocument inserts the document and its chunks in one transaction
func (s *DocumentStore) CreateDocument(ctx context.Context, title, content, summary string, chunks []domain.ChunkData) (string, error) {
	id := domain.GenerateDocumentID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, summary, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, title, content, summary, s.now().UnixMilli(),
	); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (document_id, position, text, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, id, i, c.Text, encodeEmbedding(c.Embedding)); err != nil {
			return "", fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// UpdateDocumentMetadata records file type and size
func (s *DocumentStore) UpdateDocumentMetadata(ctx context.Context, docID, fileType string, fileSize int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET file_type = ?, file_size = ? WHERE id = ?`, fileType, fileSize, docID)
	if err != nil {
		return fmt.Errorf("update document metadata: %w", err)
	}
	return requireRow(res)
}

// ListChunks returns chunks with their document titles, ordered by document then position
func (s *DocumentStore) ListChunks(ctx context.Context, docID string) ([]domain.StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.text, c.embedding, c.document_id, d.title
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE ? = '' OR c.document_id = ?
		ORDER BY c.document_id, c.position
	`, docID, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredChunk
	for rows.Next() {
		var (
			c    domain.StoredChunk
			blob []byte
		)
		if err := rows.Scan(&c.Text, &blob, &c.DocumentID, &c.DocumentTitle); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if c.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, err
		}
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
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []*domain.DocumentSummary{}
	for rows.Next() {
		var (
			d       domain.DocumentSummary
			created int64
		)
		if err := rows.Scan(&d.ID, &d.Title, &d.Summary, &d.FileType, &d.FileSize, &created, &d.ChunksCount); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	var (
		doc     domain.Document
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, summary, file_type, file_size, created_at
		FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Summary, &doc.FileType, &doc.FileSize, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.CreatedAt = time.UnixMilli(created).UTC()
	return &doc, nil
}

// Delete deletes a document; its chunks cascade
func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
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

// Close closes the database
func (s *DocumentStore) Close() error {
	return s.db.Close()
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

func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt embedding: %d bytes", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
