package driven

import (
	"context"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// AnswerGenerator is an independent answer source, typically a hosted LLM
type AnswerGenerator interface {
	// Generate answers query from contexts
	Generate(ctx context.Context, query string, contexts []string) (string, error)

	// Model returns the preferred model name
	Model() string
}

// AnswerJudge compares two candidate answers for the same query.
// Answer A is the local candidate, B the external one.
type AnswerJudge interface {
	Judge(ctx context.Context, query, answerA, answerB string) (domain.Verdict, error)
}
