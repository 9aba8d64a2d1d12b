package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/cache"
	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driving"
)

// Ensure queryService implements QueryService
var _ driving.QueryService = (*queryService)(nil)

// QueryServiceConfig holds QueryService dependencies
type QueryServiceConfig struct {
	Provider driven.CapabilityProvider
	Store    driven.DocumentStore
	Arbiter  *DualAnswerArbiter

	// SearchCache holds full rankings keyed by query and document scope
	SearchCache *cache.Cache[[]domain.SearchResult]
	// Embeddings is only read for stats; Provider is expected to write through it
	Embeddings *cache.Cache[[]float32]

	// RerankTimeout bounds the rerank call
	RerankTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// queryService implements the QueryService interface
type queryService struct {
	provider      driven.CapabilityProvider
	search        *SimilaritySearch
	arbiter       *DualAnswerArbiter
	searchCache   *cache.Cache[[]domain.SearchResult]
	embeddings    *cache.Cache[[]float32]
	rerankTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewQueryService creates a new QueryService
func NewQueryService(cfg QueryServiceConfig) driving.QueryService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SearchCache == nil {
		cfg.SearchCache = cache.New[[]domain.SearchResult](cache.Config{})
	}
	if cfg.Embeddings == nil {
		cfg.Embeddings = cache.New[[]float32](cache.Config{})
	}
	if cfg.RerankTimeout <= 0 {
		cfg.RerankTimeout = DefaultCapabilityTimeout
	}
	if cfg.Arbiter == nil {
		cfg.Arbiter = NewDualAnswerArbiter(ArbiterConfig{Local: cfg.Provider, Logger: cfg.Logger})
	}
	return &queryService{
		provider:      cfg.Provider,
		search:        NewSimilaritySearch(cfg.Store, cfg.Logger),
		arbiter:       cfg.Arbiter,
		searchCache:   cfg.SearchCache,
		embeddings:    cfg.Embeddings,
		rerankTimeout: cfg.RerankTimeout,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}
}

// Query retrieves the page of chunks for opts, reranks them and arbitrates
// an answer over the top contexts.
func (s *queryService) Query(ctx context.Context, query string, opts domain.SearchOptions) (*domain.DualAnswerResult, error) {
	start := s.now()

	results, err := s.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &domain.DualAnswerResult{
			Answer:          domain.AnswerNoResults,
			Source:          domain.AnswerSourceLocal,
			SelectionReason: domain.ReasonRuleBased,
			ProcessingTime:  s.now().Sub(start),
			Sources:         []domain.SourceRef{},
		}, nil
	}

	results = s.rerank(ctx, query, results)
	if len(results) > domain.MaxContexts {
		results = results[:domain.MaxContexts]
	}

	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Text
	}

	answer := s.arbiter.Answer(ctx, query, contexts)
	answer.Sources = sourceRefs(results)
	answer.ProcessingTime = s.now().Sub(start)
	return answer, nil
}

// Search returns one page of the similarity ranking. Full rankings are
// cached per query and document scope; pagination is applied afterwards.
func (s *queryService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", domain.ErrInvalidInput)
	}
	opts = opts.Normalize()

	docID := opts.DocumentID
	if docID == domain.AllDocumentID {
		docID = ""
	}

	key := cache.SearchKey(query, docID)
	ranked, ok := s.searchCache.Get(key)
	if !ok {
		embedding, err := s.provider.Embed(ctx, query)
		degraded := err != nil
		if degraded {
			s.logger.Warn("query embedding failed, using zero vector", "error", err)
			embedding = make([]float32, s.provider.Dimensions())
		}

		ranked, err = s.search.Rank(ctx, embedding, docID)
		if err != nil {
			return nil, fmt.Errorf("rank chunks: %w", err)
		}
		// a zero-vector ranking is only good for this call
		if !degraded {
			s.searchCache.Put(key, ranked)
		}
	}

	return Page(ranked, opts.TopK, opts.Offset), nil
}

// rerank reorders results by the provider's relevance scores. On failure the
// similarity order is kept.
func (s *queryService) rerank(ctx context.Context, query string, results []domain.SearchResult) []domain.SearchResult {
	candidates := make([]string, len(results))
	for i, r := range results {
		candidates[i] = r.Text
	}

	ctx, cancel := context.WithTimeout(ctx, s.rerankTimeout)
	defer cancel()

	scores, err := s.provider.Rerank(ctx, query, candidates)
	if err != nil || len(scores) != len(results) {
		s.logger.Warn("rerank failed, keeping similarity order", "error", err, "scores", len(scores), "candidates", len(results))
		return results
	}

	reranked := make([]domain.SearchResult, len(results))
	copy(reranked, results)
	for i := range reranked {
		reranked[i].RerankScore = scores[i]
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})
	return reranked
}

// CacheStats reports embedding and search cache sizes
func (s *queryService) CacheStats() domain.CacheStats {
	return domain.CacheStats{
		EmbeddingCacheSize: s.embeddings.Len(),
		SearchCacheSize:    s.searchCache.Len(),
		MaxCacheSize:       s.searchCache.MaxSize(),
		CacheTTL:           int(s.searchCache.TTL() / time.Second),
	}
}

// ClearCache empties both caches
func (s *queryService) ClearCache() {
	s.embeddings.Clear()
	s.searchCache.Clear()
	s.logger.Info("caches cleared")
}

func sourceRefs(results []domain.SearchResult) []domain.SourceRef {
	refs := make([]domain.SourceRef, 0, len(results))
	for _, r := range results {
		if r.DocumentID == "" {
			continue
		}
		refs = append(refs, domain.SourceRef{DocumentID: r.DocumentID, DocumentTitle: r.DocumentTitle})
	}
	return refs
}
