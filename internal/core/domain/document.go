package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// GenerateDocumentID creates a lexicographically sortable document identifier.
func GenerateDocumentID() string {
	return ulid.Make().String()
}

// Document represents an ingested file and its extracted text
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	FileType  string    `json:"file_type"`
	FileSize  int64     `json:"file_size"`
	CreatedAt time.Time `json:"created_at"`
}

// Chunk represents a searchable piece of a document.
// Chunks are immutable once stored and are deleted with their document.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// ChunkData is a chunk waiting to be persisted
type ChunkData struct {
	Text      string
	Embedding []float32
}

// StoredChunk is a chunk row joined with its owning document's title
type StoredChunk struct {
	Text          string
	Embedding     []float32
	DocumentID    string
	DocumentTitle string
}

// DocumentSummary is the listing view of a document, without its content
type DocumentSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	FileType    string    `json:"file_type"`
	FileSize    int64     `json:"file_size"`
	ChunksCount int       `json:"chunks_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentStats aggregates store-wide totals
type DocumentStats struct {
	Documents     int
	Chunks        int
	TotalFileSize int64
}

// AvgChunksPerDocument divides chunks by documents, treating an empty store as one document.
func (s DocumentStats) AvgChunksPerDocument() float64 {
	return float64(s.Chunks) / float64(max(s.Documents, 1))
}

// Listing page bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 200
)

// DocumentWithChunks combines a document with its chunks
type DocumentWithChunks struct {
	Document *Document `json:"document"`
	Chunks   []*Chunk  `json:"chunks"`
}

// FileTypeOctetStream is used when the upload extension is unknown.
const FileTypeOctetStream = "application/octet-stream"
