package domain

// SearchResult is a scored chunk returned by similarity search
type SearchResult struct {
	Text          string  `json:"text"`
	DocumentID    string  `json:"doc_id"`
	DocumentTitle string  `json:"doc_title"`
	Score         float64 `json:"score"`
	RerankScore   float64 `json:"rerank_score,omitempty"`
}

// Search defaults
const (
	DefaultTopK   = 25
	MaxTopK       = 50
	MaxContexts   = 8
	AllDocumentID = "all"
)

// SearchOptions configures a query request
type SearchOptions struct {
	TopK       int    `json:"top_k"`
	Offset     int    `json:"offset"`
	DocumentID string `json:"doc_id,omitempty"`
}

// Normalize fills defaults and clamps out-of-range values.
func (o SearchOptions) Normalize() SearchOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.TopK > MaxTopK {
		o.TopK = MaxTopK
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// SourceRef identifies a document that contributed context to an answer
type SourceRef struct {
	DocumentID    string `json:"doc_id"`
	DocumentTitle string `json:"doc_title"`
}
