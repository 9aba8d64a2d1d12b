package ai

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Ensure LocalBackend implements CapabilityProvider
var _ driven.CapabilityProvider = (*LocalBackend)(nil)

// Local backend defaults
const (
	LocalDimensions      = 384
	localAnswerSentences = 4
	localAnswerFallback  = 400
)

var (
	tokenPattern    = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)
	sentencePattern = regexp.MustCompile(`[^.!?\n]+[.!?]?`)
)

// LocalBackend is an offline CapabilityProvider. Embeddings are
// feature-hashed unigrams and bigrams, L2 normalised. Rerank is lexical
// overlap, summaries and answers are extractive.
type LocalBackend struct {
	dimensions int
	stopwords  map[string]struct{}
}

// NewLocalBackend creates a local backend. dimensions <= 0 uses LocalDimensions.
func NewLocalBackend(dimensions int) *LocalBackend {
	if dimensions <= 0 {
		dimensions = LocalDimensions
	}
	return &LocalBackend{dimensions: dimensions, stopwords: defaultStopwords()}
}

// Embed hashes text into a fixed-size unit vector. Empty text embeds to zeros.
func (b *LocalBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, b.dimensions)
	tokens := b.contentTokens(text)
	for i, tok := range tokens {
		b.addFeature(vec, tok, 1)
		if i > 0 {
			b.addFeature(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently
func (b *LocalBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := b.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Rerank scores candidates by the Ochiai coefficient of their token sets
// against the query.
func (b *LocalBackend) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := tokenSet(b.contentTokens(query))
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = ochiai(q, tokenSet(b.contentTokens(c)))
	}
	return scores, nil
}

// Summarize picks the highest scoring sentences by normalised term
// frequency, keeps them in document order and cuts at maxWords.
func (b *LocalBackend) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", nil
	}

	freq := map[string]float64{}
	maxF := 0.0
	for _, s := range sentences {
		for _, tok := range b.contentTokens(s) {
			freq[tok]++
			maxF = math.Max(maxF, freq[tok])
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		toks := b.contentTokens(s)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok] / maxF
		}
		if len(toks) > 0 {
			score /= math.Sqrt(float64(len(toks)))
		}
		ranked[i] = scored{i, score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var picked []int
	words := 0
	for _, r := range ranked {
		if words >= maxWords && len(picked) > 0 {
			break
		}
		picked = append(picked, r.idx)
		words += len(strings.Fields(sentences[r.idx]))
	}
	sort.Ints(picked)

	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = sentences[idx]
	}
	return limitWords(strings.Join(parts, " "), maxWords), nil
}

// GenerateAnswer returns up to four context sentences that share terms with
// the query, best first. Without overlap it returns the start of the first context.
func (b *LocalBackend) GenerateAnswer(ctx context.Context, query string, contexts []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(contexts) == 0 {
		return "", nil
	}

	q := tokenSet(b.contentTokens(query))
	type scored struct {
		text  string
		score float64
	}
	var candidates []scored
	seen := map[string]bool{}
	for _, c := range contexts {
		for _, s := range splitSentences(c) {
			if seen[s] {
				continue
			}
			seen[s] = true
			if score := ochiai(q, tokenSet(b.contentTokens(s))); score > 0 {
				candidates = append(candidates, scored{s, score})
			}
		}
	}

	if len(candidates) == 0 {
		first := []rune(strings.TrimSpace(contexts[0]))
		if len(first) > localAnswerFallback {
			first = first[:localAnswerFallback]
		}
		return string(first), nil
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > localAnswerSentences {
		candidates = candidates[:localAnswerSentences]
	}
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = c.text
	}
	return strings.Join(parts, " "), nil
}

// Dimensions returns the embedding dimension size
func (b *LocalBackend) Dimensions() int {
	return b.dimensions
}

// Name returns the backend name
func (b *LocalBackend) Name() string {
	return "local"
}

// HealthCheck always succeeds; the backend has no external dependencies
func (b *LocalBackend) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

// Close releases nothing
func (b *LocalBackend) Close() error {
	return nil
}

func (b *LocalBackend) addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// contentTokens lowercases and tokenizes text, dropping stopwords
func (b *LocalBackend) contentTokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := b.stopwords[tok]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentencePattern.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ochiai is |a∩b| / sqrt(|a|·|b|)
func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(a))*float64(len(b)))
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

func limitWords(text string, n int) string {
	words := strings.Fields(text)
	if n <= 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "when", "where", "why", "how", "do", "does", "did", "i", "me", "my", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
