package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-docqa/internal/fallback"
)

// ArbiterState is a step of one arbitration.
type ArbiterState string

const (
	StateStart              ArbiterState = "START"
	StateLocalGenerating    ArbiterState = "LOCAL_GENERATING"
	StateExternalGenerating ArbiterState = "EXTERNAL_GENERATING"
	StateComparing          ArbiterState = "COMPARING"
	StateSelected           ArbiterState = "SELECTED"
)

// Arbiter defaults.
const (
	DefaultCapabilityTimeout = 30 * time.Second
	DefaultSummaryWords      = 150
	errorDetailLimit         = 100
)

var datePattern = regexp.MustCompile(`\d{1,2}\s+[A-Za-z]+\s+\d{4}`)

// ArbiterConfig holds DualAnswerArbiter dependencies.
type ArbiterConfig struct {
	// Local is required
	Local driven.CapabilityProvider
	// External is optional; nil selects the local answer unconditionally
	External driven.AnswerGenerator
	// Judge is optional; nil keeps the local answer when both succeed
	Judge driven.AnswerJudge
	// Sources, when set, is consulted on every Answer and overrides External and Judge
	Sources AnswerSources

	Guard *HallucinationGuard

	// Timeout bounds each network-bound capability call
	Timeout      time.Duration
	MaxContexts  int
	SummaryWords int

	Logger *slog.Logger
	Now    func() time.Time

	// Observe, when set, receives every state transition
	Observe func(ArbiterState)
}

// AnswerSources resolves the reconfigurable answer sources at call time.
type AnswerSources interface {
	ExternalGenerator() driven.AnswerGenerator
	Judge() driven.AnswerJudge
}

type staticSources struct {
	external driven.AnswerGenerator
	judge    driven.AnswerJudge
}

func (s staticSources) ExternalGenerator() driven.AnswerGenerator { return s.external }
func (s staticSources) Judge() driven.AnswerJudge                 { return s.judge }

// DualAnswerArbiter asks two independent sources for an answer and selects one.
type DualAnswerArbiter struct {
	local        driven.CapabilityProvider
	sources      AnswerSources
	guard        *HallucinationGuard
	timeout      time.Duration
	maxContexts  int
	summaryWords int
	logger       *slog.Logger
	now          func() time.Time
	observe      func(ArbiterState)
}

// NewDualAnswerArbiter creates an arbiter, filling defaults.
func NewDualAnswerArbiter(cfg ArbiterConfig) *DualAnswerArbiter {
	if cfg.Sources == nil {
		cfg.Sources = staticSources{external: cfg.External, judge: cfg.Judge}
	}
	if cfg.Guard == nil {
		cfg.Guard = DefaultHallucinationGuard()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCapabilityTimeout
	}
	if cfg.MaxContexts <= 0 {
		cfg.MaxContexts = domain.MaxContexts
	}
	if cfg.SummaryWords <= 0 {
		cfg.SummaryWords = DefaultSummaryWords
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Observe == nil {
		cfg.Observe = func(ArbiterState) {}
	}
	return &DualAnswerArbiter{
		local:        cfg.Local,
		sources:      cfg.Sources,
		guard:        cfg.Guard,
		timeout:      cfg.Timeout,
		maxContexts:  cfg.MaxContexts,
		summaryWords: cfg.SummaryWords,
		logger:       cfg.Logger,
		now:          cfg.Now,
		observe:      cfg.Observe,
	}
}

// Answer runs one arbitration. It never fails: capability errors degrade to
// fixed answers and the result always reaches SELECTED.
func (a *DualAnswerArbiter) Answer(ctx context.Context, query string, contexts []string) *domain.DualAnswerResult {
	start := a.now()
	a.observe(StateStart)

	if len(contexts) > a.maxContexts {
		contexts = contexts[:a.maxContexts]
	}

	a.observe(StateLocalGenerating)
	local := a.localAnswer(ctx, query, contexts)

	result := &domain.DualAnswerResult{LocalAnswer: local}

	generator, judge := a.sources.ExternalGenerator(), a.sources.Judge()
	if generator == nil {
		result.Answer, result.Source, result.SelectionReason = local, domain.AnswerSourceLocal, domain.ReasonExternalNotConfigured
		return a.finish(query, result, start)
	}

	a.observe(StateExternalGenerating)
	external := a.externalAnswer(ctx, generator, query, contexts)
	result.ExternalAnswer = external

	localFailed, externalFailed := domain.LooksLikeError(local), domain.LooksLikeError(external)
	switch {
	case localFailed && !externalFailed:
		result.Answer, result.Source, result.SelectionReason = external, domain.AnswerSourceExternal, domain.ReasonLocalFailed
	case !localFailed && externalFailed:
		result.Answer, result.Source, result.SelectionReason = local, domain.AnswerSourceLocal, domain.ReasonExternalFailed
	case localFailed && externalFailed:
		result.Answer, result.Source, result.SelectionReason = local, domain.AnswerSourceLocal, domain.ReasonBothFailed
	default:
		a.observe(StateComparing)
		verdict := a.compare(ctx, judge, query, local, external)
		result.Source, result.SelectionReason = verdict.Winner, verdict.Reason
		result.Answer = local
		if verdict.Winner == domain.AnswerSourceExternal {
			result.Answer = external
		}
	}

	return a.finish(query, result, start)
}

func (a *DualAnswerArbiter) finish(query string, result *domain.DualAnswerResult, start time.Time) *domain.DualAnswerResult {
	if guarded, rule := a.guard.Apply(query, result.Answer); rule != "" {
		a.logger.Warn("answer replaced by hallucination rule", "rule", rule, "source", result.Source)
		result.Answer = guarded
	}
	result.ProcessingTime = a.now().Sub(start)
	a.observe(StateSelected)
	a.logger.Info("dual answer selected", "source", result.Source, "reason", result.SelectionReason, "took", result.ProcessingTime)
	return result
}

// localAnswer walks the local routes in order: rule-based answers first,
// then model generation. Exhaustion yields an error-marked answer.
func (a *DualAnswerArbiter) localAnswer(ctx context.Context, query string, contexts []string) string {
	q := strings.ToLower(query)
	joined := strings.Join(contexts, "\n\n")

	attempts := []fallback.Attempt[string]{
		{Name: "page-count", Run: func(context.Context) (string, error) {
			if !AsksPageCount(query) {
				return "", fallback.ErrSkip
			}
			return domain.AnswerPageCount, nil
		}},
		{Name: "summary", Run: func(ctx context.Context) (string, error) {
			if !strings.Contains(q, "summary") {
				return "", fallback.ErrSkip
			}
			ctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			return a.local.Summarize(ctx, strings.Join(contexts, " "), a.summaryWords)
		}},
		{Name: "exam-date", Run: func(context.Context) (string, error) {
			if !strings.Contains(q, "exam") {
				return "", fallback.ErrSkip
			}
			return dateAnswer(joined, "The Preliminary Examination is scheduled for %s.")
		}},
		{Name: "last-date", Run: func(context.Context) (string, error) {
			if !strings.Contains(q, "last date") {
				return "", fallback.ErrSkip
			}
			return dateAnswer(joined, "The last date is %s.")
		}},
		{Name: "generate", Run: func(ctx context.Context) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			answer, err := a.local.GenerateAnswer(ctx, query, contexts)
			if err != nil {
				return "", err
			}
			answer, _ = a.guard.Apply(query, strings.TrimSpace(answer))
			return answer, nil
		}},
	}

	res := fallback.Run(ctx, attempts, func(trail []fallback.Outcome[string]) string {
		return "Local model error: " + truncate(errString(trail), errorDetailLimit)
	})
	if res.Status == fallback.StatusDefault {
		a.logger.Error("local answer generation failed", "error", res.LastErr())
	}

	answer := strings.TrimSpace(res.Value)
	if answer == "" {
		return domain.AnswerLocalEmpty
	}
	return answer
}

func (a *DualAnswerArbiter) externalAnswer(ctx context.Context, generator driven.AnswerGenerator, query string, contexts []string) string {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	answer, err := generator.Generate(ctx, query, contexts)
	if err != nil {
		a.logger.Warn("external answer generation failed", "model", generator.Model(), "error", err)
		return "External model error: " + truncate(err.Error(), errorDetailLimit)
	}
	answer, _ = a.guard.Apply(query, strings.TrimSpace(answer))
	return answer
}

// compare asks the judge for a verdict, defaulting to the local answer.
func (a *DualAnswerArbiter) compare(ctx context.Context, judge driven.AnswerJudge, query, local, external string) domain.Verdict {
	if judge == nil {
		return domain.Verdict{Winner: domain.AnswerSourceLocal, Reason: domain.ReasonJudgeUnavailable}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	verdict, err := judge.Judge(ctx, query, local, external)
	if err != nil {
		a.logger.Warn("answer comparison failed", "error", err)
		return domain.Verdict{Winner: domain.AnswerSourceLocal, Reason: domain.ReasonJudgeFailed}
	}
	if !verdict.Clear {
		return domain.Verdict{Winner: domain.AnswerSourceLocal, Reason: domain.ReasonJudgeUnclear}
	}
	return verdict
}

var errNoDate = errors.New("no date in context")

func dateAnswer(context, template string) (string, error) {
	date := datePattern.FindString(context)
	if date == "" {
		return "", errNoDate
	}
	return fmt.Sprintf(template, strings.Join(strings.Fields(date), " ")), nil
}

func errString(trail []fallback.Outcome[string]) string {
	for i := len(trail) - 1; i >= 0; i-- {
		if trail[i].Err != nil && !errors.Is(trail[i].Err, errNoDate) {
			return trail[i].Err.Error()
		}
	}
	return "no answer produced"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
