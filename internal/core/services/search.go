package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// SimilaritySearch ranks stored chunks against a query embedding by brute-force
// cosine similarity. Every query scans the whole store (or one document);
// an approximate nearest neighbour index would replace Rank at larger scale.
type SimilaritySearch struct {
	store  driven.DocumentStore
	logger *slog.Logger
}

// NewSimilaritySearch creates a SimilaritySearch over store.
func NewSimilaritySearch(store driven.DocumentStore, logger *slog.Logger) *SimilaritySearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimilaritySearch{store: store, logger: logger}
}

// Search returns results [offset, offset+topK) of the ranking.
func (s *SimilaritySearch) Search(ctx context.Context, queryEmbedding []float32, topK, offset int, docID string) ([]domain.SearchResult, error) {
	ranked, err := s.Rank(ctx, queryEmbedding, docID)
	if err != nil {
		return nil, err
	}
	return Page(ranked, topK, offset), nil
}

// Rank scores every chunk (optionally only docID's) and sorts them by
// descending score. Ties keep store iteration order.
func (s *SimilaritySearch) Rank(ctx context.Context, queryEmbedding []float32, docID string) ([]domain.SearchResult, error) {
	chunks, err := s.store.ListChunks(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	results := make([]domain.SearchResult, len(chunks))
	for i, c := range chunks {
		score, err := cosine(queryEmbedding, c.Embedding)
		if err != nil {
			s.logger.Warn("similarity failed, scoring 0", "doc_id", c.DocumentID, "error", err)
		}
		results[i] = domain.SearchResult{
			Text:          c.Text,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			Score:         score,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Page returns the slice [offset, offset+topK) of results, clamped to bounds.
func Page(results []domain.SearchResult, topK, offset int) []domain.SearchResult {
	if offset < 0 {
		offset = 0
	}
	if topK <= 0 || offset >= len(results) {
		return []domain.SearchResult{}
	}
	end := offset + topK
	if end > len(results) {
		end = len(results)
	}
	out := make([]domain.SearchResult, end-offset)
	copy(out, results[offset:end])
	return out
}

// CosineSimilarity returns dot(a, b) / (|a| |b|), or 0 when either vector has
// zero norm, the dimensions differ, or the result is not finite.
func CosineSimilarity(a, b []float32) float64 {
	score, _ := cosine(a, b)
	return score
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	score := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("non-finite similarity")
	}
	return score, nil
}
