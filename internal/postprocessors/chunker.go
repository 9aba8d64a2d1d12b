package postprocessors

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// ChunkConfig configures the chunker behavior.
// Sizes are measured in characters.
type ChunkConfig struct {
	// TargetSize is the preferred maximum characters per chunk
	TargetSize int

	// Overlap is the approximate character overlap between chunks
	Overlap int

	// LargeDocumentWords is the word count above which sizes are enlarged
	LargeDocumentWords int

	// LargeTargetCap bounds TargetSize for large documents
	LargeTargetCap int

	// LargeOverlapCap bounds Overlap for large documents
	LargeOverlapCap int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetSize:         800,
		Overlap:            120,
		LargeDocumentWords: 10000,
		LargeTargetCap:     1200,
		LargeOverlapCap:    200,
	}
}

// Size increments applied to large documents.
const (
	largeTargetIncrement  = 400
	largeOverlapIncrement = 80

	// charsPerWord converts the character overlap into a trailing word count
	charsPerWord = 5
)

// Separator classes from coarsest to finest. Sentence boundaries are
// handled by splitSentences since RE2 has no lookbehind.
var (
	paragraphSep = regexp.MustCompile(`\n{2,}`)
	lineSep      = regexp.MustCompile(`\n`)
	listSep      = regexp.MustCompile(` - `)
	bulletSep    = regexp.MustCompile(` • `)
)

// Chunker splits content into overlapping chunks.
// This is typically the first processor in the pipeline (Order = 0).
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	defaults := DefaultChunkConfig()
	if config.TargetSize <= 0 {
		config.TargetSize = defaults.TargetSize
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	if config.LargeDocumentWords <= 0 {
		config.LargeDocumentWords = defaults.LargeDocumentWords
	}
	if config.LargeTargetCap <= 0 {
		config.LargeTargetCap = defaults.LargeTargetCap
	}
	if config.LargeOverlapCap <= 0 {
		config.LargeOverlapCap = defaults.LargeOverlapCap
	}
	return &Chunker{config: config}
}

// Config returns the chunker configuration.
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Split chunks text using the configured sizes.
func (c *Chunker) Split(text string) []string {
	return c.split(text, c.config.TargetSize, c.config.Overlap)
}

// Split chunks text with the default large-document thresholds.
// It returns an error only when targetSize or overlap are out of range.
func Split(text string, targetSize, overlap int) ([]string, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("target size %d: %w", targetSize, domain.ErrInvalidInput)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap %d: %w", overlap, domain.ErrInvalidInput)
	}
	c := &Chunker{config: DefaultChunkConfig()}
	return c.split(text, targetSize, overlap), nil
}

// Process splits content into chunks.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		for _, text := range c.Split(chunk.Content) {
			result = append(result, driven.Chunk{
				Content:  text,
				Position: position,
				Metadata: chunk.Metadata,
			})
			position++
		}
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

func (c *Chunker) split(text string, targetSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	targetSize, overlap = c.adapt(len(strings.Fields(text)), targetSize, overlap)
	fragments := Fragments(text)
	overlapWords := overlap / charsPerWord

	chunks := make([]string, 0, len(fragments)/4+1)
	var buf []string
	size := 0

	for _, frag := range fragments {
		fragLen := utf8.RuneCountInString(frag)
		if len(buf) > 0 && size+1+fragLen > targetSize {
			chunks = append(chunks, strings.Join(buf, " "))

			buf, size = nil, 0
			if seed := trailingWords(lastChunk(chunks), overlapWords); seed != "" {
				seedLen := utf8.RuneCountInString(seed)
				// an overlap seed never pushes a chunk past the target
				if seedLen+1+fragLen <= targetSize {
					buf, size = []string{seed}, seedLen
				}
			}
		}
		if len(buf) > 0 {
			size++
		}
		buf = append(buf, frag)
		size += fragLen
	}
	if len(buf) > 0 {
		chunks = append(chunks, strings.Join(buf, " "))
	}
	return chunks
}

// adapt enlarges sizes for large documents, never shrinking them.
func (c *Chunker) adapt(words, targetSize, overlap int) (int, int) {
	if words <= c.config.LargeDocumentWords {
		return targetSize, overlap
	}
	if grown := min(c.config.LargeTargetCap, targetSize+largeTargetIncrement); grown > targetSize {
		targetSize = grown
	}
	if grown := min(c.config.LargeOverlapCap, overlap+largeOverlapIncrement); grown > overlap {
		overlap = grown
	}
	return targetSize, overlap
}

// Fragments splits text hierarchically by paragraph breaks, sentence
// boundaries, line breaks, list markers and bullets, dropping empty pieces.
func Fragments(text string) []string {
	parts := paragraphSep.Split(text, -1)
	parts = flatMap(parts, splitSentences)
	for _, sep := range []*regexp.Regexp{lineSep, listSep, bulletSep} {
		parts = flatMap(parts, func(p string) []string { return sep.Split(p, -1) })
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences splits after '.', '?' or '!' when followed by whitespace,
// consuming that single whitespace character.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	prevTerminal := false
	for i, r := range text {
		if prevTerminal && unicode.IsSpace(r) {
			parts = append(parts, text[start:i])
			start = i + utf8.RuneLen(r)
		}
		prevTerminal = r == '.' || r == '?' || r == '!'
	}
	return append(parts, text[start:])
}

func flatMap(parts []string, fn func(string) []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, fn(p)...)
	}
	return out
}

func trailingWords(text string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

func lastChunk(chunks []string) string {
	return chunks[len(chunks)-1]
}
