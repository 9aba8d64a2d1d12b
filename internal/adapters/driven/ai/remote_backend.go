package ai

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Ensure RemoteBackend implements CapabilityProvider
var _ driven.CapabilityProvider = (*RemoteBackend)(nil)

// DefaultChatModel is used for summaries and answers when none is configured
const DefaultChatModel = "gpt-4o-mini"

// RemoteConfig holds configuration for the remote backend
type RemoteConfig struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	ChatModel      string

	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// RemoteBackend implements CapabilityProvider over an OpenAI-compatible API.
// Rerank is cosine similarity between the query and candidate embeddings.
type RemoteBackend struct {
	client         *openAIClient
	embeddingModel string
	chatModel      string
	dimensions     int
}

// NewRemoteBackend creates a remote backend
func NewRemoteBackend(cfg RemoteConfig) (*RemoteBackend, error) {
	if cfg.BaseURL == "" && cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: remote backend needs an API key or base URL", domain.ErrNotConfigured)
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}

	return &RemoteBackend{
		client: newOpenAIClient(clientConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			HTTPClient:        cfg.HTTPClient,
		}),
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		dimensions:     embeddingDimensions(cfg.EmbeddingModel),
	}, nil
}

// Embed generates an embedding for one text
func (b *RemoteBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := b.client.embed(ctx, b.embeddingModel, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request
func (b *RemoteBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return b.client.embed(ctx, b.embeddingModel, texts)
}

// Rerank embeds query and candidates together and scores by cosine
func (b *RemoteBackend) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return []float64{}, nil
	}
	embeddings, err := b.client.embed(ctx, b.embeddingModel, append([]string{query}, candidates...))
	if err != nil {
		return nil, err
	}
	q := embeddings[0]
	scores := make([]float64, len(candidates))
	for i, c := range embeddings[1:] {
		scores[i] = cosine(q, c)
	}
	return scores, nil
}

// Summarize asks the chat model for a summary of at most maxWords words
func (b *RemoteBackend) Summarize(ctx context.Context, text string, maxWords int) (string, error) {
	summary, err := b.client.chat(ctx, chatRequest{
		Model: b.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: "You summarize documents accurately and concisely."},
			{Role: "user", Content: fmt.Sprintf("Summarize the following text in at most %d words.\n\n%s", maxWords, text)},
		},
		Temperature: 0.2,
		MaxTokens:   maxWords * 2,
	})
	if err != nil {
		return "", err
	}
	return limitWords(summary, maxWords), nil
}

// GenerateAnswer answers query from contexts with the chat model
func (b *RemoteBackend) GenerateAnswer(ctx context.Context, query string, contexts []string) (string, error) {
	return b.client.chat(ctx, chatRequest{
		Model: b.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: "Answer the question using only the provided context. If the context does not contain the answer, say so."},
			{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", strings.Join(contexts, "\n\n"), query)},
		},
		Temperature: 0.2,
		MaxTokens:   400,
	})
}

// Dimensions returns the embedding dimension size
func (b *RemoteBackend) Dimensions() int {
	return b.dimensions
}

// Name returns the backend name
func (b *RemoteBackend) Name() string {
	return "remote:" + b.embeddingModel
}

// HealthCheck verifies the embedding endpoint is reachable
func (b *RemoteBackend) HealthCheck(ctx context.Context) error {
	_, err := b.Embed(ctx, "health check")
	return err
}

// Close releases idle connections
func (b *RemoteBackend) Close() error {
	b.client.close()
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
