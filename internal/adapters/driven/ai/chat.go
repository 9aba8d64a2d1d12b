package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-docqa/internal/fallback"
)

// Ensure ChatGenerator implements AnswerGenerator and AnswerJudge
var (
	_ driven.AnswerGenerator = (*ChatGenerator)(nil)
	_ driven.AnswerJudge     = (*ChatGenerator)(nil)
)

// Prompt limits for the external answer source
const (
	chatMaxContexts   = 4
	chatContextLimit  = 2000
	chatAnswerTokens  = 800
	judgeAnswerTokens = 100
)

// ErrAllModelsFailed is returned when every model in the list failed
var ErrAllModelsFailed = errors.New("all models unavailable")

const answerSystemPrompt = `You are an expert assistant. Answer accurately and in detail using only the given context.

Instructions:
1. Extract all relevant information from the context
2. Give specific details, numbers, dates and facts from the context
3. Interpret grades, scores and official records precisely
4. Write complete sentences`

const judgePromptTemplate = `You are an expert judge evaluating two answers to the same question.

Question: %s

Answer A:
%s

Answer B:
%s

Evaluate both answers on accuracy, completeness, clarity, relevance and use of specific details.

Respond with ONLY:
"Winner: A" OR "Winner: B" followed by a brief reason (1 sentence).

Format: "Winner: [A/B] - [brief reason]"`

// ChatConfig holds configuration for the chat generator
type ChatConfig struct {
	BaseURL string
	APIKey  string

	// Models are tried in order until one answers
	Models []string
	// JudgeModels defaults to Models
	JudgeModels []string

	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// ChatGenerator is the independent external answer source and judge.
type ChatGenerator struct {
	client      *openAIClient
	models      []string
	judgeModels []string
	logger      *slog.Logger
}

// NewChatGenerator creates a chat generator. At least one model is required.
func NewChatGenerator(cfg ChatConfig) (*ChatGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: chat API key is required", domain.ErrNotConfigured)
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("%w: at least one chat model is required", domain.ErrInvalidInput)
	}
	if len(cfg.JudgeModels) == 0 {
		cfg.JudgeModels = cfg.Models
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &ChatGenerator{
		client: newOpenAIClient(clientConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
			HTTPClient:        cfg.HTTPClient,
		}),
		models:      cfg.Models,
		judgeModels: cfg.JudgeModels,
		logger:      cfg.Logger,
	}, nil
}

// Model returns the preferred model name
func (g *ChatGenerator) Model() string {
	return g.models[0]
}

// Generate answers query from the first four contexts, capped at 2000 characters.
func (g *ChatGenerator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	if len(contexts) > chatMaxContexts {
		contexts = contexts[:chatMaxContexts]
	}
	contextText := strings.Join(contexts, "\n\n")
	if r := []rune(contextText); len(r) > chatContextLimit {
		contextText = string(r[:chatContextLimit]) + "..."
	}

	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nBased on the context above, provide a detailed answer with specific facts, numbers and dates from the document.\n\nAnswer:", contextText, query)
	return g.tryModels(ctx, g.models, func(model string) chatRequest {
		return chatRequest{
			Model: model,
			Messages: []chatMessage{
				{Role: "system", Content: answerSystemPrompt},
				{Role: "user", Content: user},
			},
			Temperature: 0.3,
			MaxTokens:   chatAnswerTokens,
			TopP:        0.9,
		}
	})
}

// Judge asks the model which answer is better. Answer A is the local one.
func (g *ChatGenerator) Judge(ctx context.Context, query, answerA, answerB string) (domain.Verdict, error) {
	prompt := fmt.Sprintf(judgePromptTemplate, query, answerA, answerB)
	raw, err := g.tryModels(ctx, g.judgeModels, func(model string) chatRequest {
		return chatRequest{
			Model:       model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0.1,
			MaxTokens:   judgeAnswerTokens,
		}
	})
	if err != nil {
		return domain.Verdict{}, err
	}
	g.logger.Debug("answer comparison", "verdict", raw)
	return domain.ParseVerdict(raw), nil
}

// Ping checks that the first model answers
func (g *ChatGenerator) Ping(ctx context.Context) error {
	_, err := g.client.chat(ctx, chatRequest{
		Model:     g.models[0],
		Messages:  []chatMessage{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

// Close releases idle connections
func (g *ChatGenerator) Close() error {
	g.client.close()
	return nil
}

// tryModels runs request against each model in order, returning the first answer.
func (g *ChatGenerator) tryModels(ctx context.Context, models []string, request func(model string) chatRequest) (string, error) {
	attempts := make([]fallback.Attempt[string], len(models))
	for i, model := range models {
		attempts[i] = fallback.Attempt[string]{
			Name: model,
			Run: func(ctx context.Context) (string, error) {
				answer, err := g.client.chat(ctx, request(model))
				if err != nil {
					g.logger.Warn("chat model failed", "model", model, "error", err)
					return "", err
				}
				return answer, nil
			},
		}
	}

	res := fallback.Run(ctx, attempts, nil)
	if res.Status != fallback.StatusSuccess {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrAllModelsFailed, res.LastErr())
	}
	g.logger.Debug("chat answer generated", "model", res.Name, "chars", len(res.Value))
	return res.Value, nil
}
