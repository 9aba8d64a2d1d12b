package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven/mocks"
)

const (
	localText    = "The committee approved the budget in March after a long review."
	externalText = "The budget was approved by the finance committee in March."
)

func newTestArbiter(local *mocks.MockProvider, external *mocks.MockAnswerGenerator, judge *mocks.MockAnswerJudge) *DualAnswerArbiter {
	cfg := ArbiterConfig{Local: local}
	if external != nil {
		cfg.External = external
	}
	if judge != nil {
		cfg.Judge = judge
	}
	return NewDualAnswerArbiter(cfg)
}

func TestArbiter_ExternalNotConfigured(t *testing.T) {
	local := mocks.NewMockProvider()
	local.Answer = localText

	result := newTestArbiter(local, nil, nil).Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

	assert.Equal(t, localText, result.Answer)
	assert.Equal(t, domain.AnswerSourceLocal, result.Source)
	assert.Equal(t, domain.ReasonExternalNotConfigured, result.SelectionReason)
	assert.Empty(t, result.ExternalAnswer)
}

func TestArbiter_LocalErrorSelectsExternal(t *testing.T) {
	local := mocks.NewMockProvider()
	local.FailGenerate = true
	external := mocks.NewMockAnswerGenerator(externalText)
	judge := mocks.NewMockAnswerJudge("Winner: A - local is better")

	result := newTestArbiter(local, external, judge).Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

	assert.Equal(t, externalText, result.Answer)
	assert.Equal(t, domain.AnswerSourceExternal, result.Source)
	assert.Equal(t, domain.ReasonLocalFailed, result.SelectionReason)
	assert.Contains(t, result.LocalAnswer, "Local model error")
	assert.Equal(t, 0, judge.Calls())
}

func TestArbiter_ExternalErrorSelectsLocal(t *testing.T) {
	local := mocks.NewMockProvider()
	local.Answer = localText
	external := &mocks.MockAnswerGenerator{Err: errors.New("rate limited")}
	judge := mocks.NewMockAnswerJudge("Winner: B")

	result := newTestArbiter(local, external, judge).Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

	assert.Equal(t, localText, result.Answer)
	assert.Equal(t, domain.AnswerSourceLocal, result.Source)
	assert.Equal(t, domain.ReasonExternalFailed, result.SelectionReason)
	assert.Contains(t, result.ExternalAnswer, "External model error: rate limited")
	assert.Equal(t, 0, judge.Calls())
}

func TestArbiter_BothFailed(t *testing.T) {
	local := mocks.NewMockProvider()
	local.FailGenerate = true
	external := &mocks.MockAnswerGenerator{Err: errors.New("down")}

	result := newTestArbiter(local, external, nil).Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

	assert.Equal(t, domain.AnswerSourceLocal, result.Source)
	assert.Equal(t, domain.ReasonBothFailed, result.SelectionReason)
	assert.Equal(t, result.LocalAnswer, result.Answer)
}

func TestArbiter_JudgeVerdicts(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		judgeErr   error
		wantSource domain.AnswerSource
		wantAnswer string
		wantReason string
	}{
		{"winner A", "Winner: A - more specific", nil, domain.AnswerSourceLocal, localText, "local (more specific)"},
		{"winner B", "Winner: B - cites the date", nil, domain.AnswerSourceExternal, externalText, "external (cites the date)"},
		{"winner B no reason", "Winner: B", nil, domain.AnswerSourceExternal, externalText, "external (judge preferred)"},
		{"unclear", "Both answers are fine.", nil, domain.AnswerSourceLocal, localText, domain.ReasonJudgeUnclear},
		{"judge error", "", errors.New("timeout"), domain.AnswerSourceLocal, localText, domain.ReasonJudgeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := mocks.NewMockProvider()
			local.Answer = localText
			judge := &mocks.MockAnswerJudge{Raw: tt.raw, Err: tt.judgeErr}

			result := newTestArbiter(local, mocks.NewMockAnswerGenerator(externalText), judge).
				Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

			assert.Equal(t, tt.wantSource, result.Source)
			assert.Equal(t, tt.wantAnswer, result.Answer)
			assert.Equal(t, tt.wantReason, result.SelectionReason)
			assert.Equal(t, 1, judge.Calls())
		})
	}
}

func TestArbiter_NoJudgeKeepsLocal(t *testing.T) {
	local := mocks.NewMockProvider()
	local.Answer = localText

	result := newTestArbiter(local, mocks.NewMockAnswerGenerator(externalText), nil).
		Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

	assert.Equal(t, localText, result.Answer)
	assert.Equal(t, domain.ReasonJudgeUnavailable, result.SelectionReason)
}

func TestArbiter_PageCountNeverNumeric(t *testing.T) {
	local := mocks.NewMockProvider()
	local.Answer = "The document has 14 pages."
	external := mocks.NewMockAnswerGenerator("There are 14 pages.")
	judge := mocks.NewMockAnswerJudge("Winner: B - precise")

	result := newTestArbiter(local, external, judge).
		Answer(context.Background(), "How many pages does this document have?", []string{"Page 14 of the report"})

	assert.Equal(t, domain.AnswerPageCount, result.Answer)
	assert.Equal(t, domain.AnswerPageCount, result.LocalAnswer)
	assert.Equal(t, domain.AnswerPageCount, result.ExternalAnswer)
	assert.Equal(t, 0, local.GenerateCalls())
}

func TestArbiter_SummaryRoute(t *testing.T) {
	local := mocks.NewMockProvider()
	local.FailGenerate = true

	result := newTestArbiter(local, nil, nil).
		Answer(context.Background(), "Give me a summary", []string{"first part", "second part"})

	assert.Equal(t, "first part second part", result.Answer)
	assert.Equal(t, 0, local.GenerateCalls())
}

func TestArbiter_DateRoutes(t *testing.T) {
	contexts := []string{"Notice: the preliminary examination will be held on 12  March 2025 in hall B."}

	t.Run("exam", func(t *testing.T) {
		local := mocks.NewMockProvider()
		result := newTestArbiter(local, nil, nil).Answer(context.Background(), "When is the exam?", contexts)
		assert.Equal(t, "The Preliminary Examination is scheduled for 12 March 2025.", result.Answer)
		assert.Equal(t, 0, local.GenerateCalls())
	})

	t.Run("last date", func(t *testing.T) {
		local := mocks.NewMockProvider()
		result := newTestArbiter(local, nil, nil).Answer(context.Background(), "What is the last date to apply?", contexts)
		assert.Equal(t, "The last date is 12 March 2025.", result.Answer)
	})

	t.Run("no date falls through to generation", func(t *testing.T) {
		local := mocks.NewMockProvider()
		local.Answer = "The exam hall has not been announced yet."
		result := newTestArbiter(local, nil, nil).Answer(context.Background(), "When is the exam?", []string{"No schedule yet."})
		assert.Equal(t, "The exam hall has not been announced yet.", result.Answer)
		assert.Equal(t, 1, local.GenerateCalls())
	})
}

func TestArbiter_PlaceholderReplaced(t *testing.T) {
	local := mocks.NewMockProvider()
	local.Answer = "[1]"

	result := newTestArbiter(local, nil, nil).Answer(context.Background(), "Who signed the letter?", []string{"ctx"})

	assert.Equal(t, domain.AnswerNotFound, result.Answer)
}

func TestArbiter_EmptyLocalAnswer(t *testing.T) {
	local := mocks.NewMockProvider()

	result := newTestArbiter(local, nil, nil).Answer(context.Background(), "Who signed the letter?", nil)

	// the empty generation is caught by the placeholder rule first
	assert.Equal(t, domain.AnswerNotFound, result.Answer)
}

func TestArbiter_ContextsCapped(t *testing.T) {
	var got []string
	local := &capturingProvider{MockProvider: mocks.NewMockProvider(), seen: &got}
	arb := NewDualAnswerArbiter(ArbiterConfig{Local: local, MaxContexts: 2})

	arb.Answer(context.Background(), "question", []string{"a", "b", "c", "d"})

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestArbiter_StateTransitions(t *testing.T) {
	var mu sync.Mutex
	var states []ArbiterState
	local := mocks.NewMockProvider()
	local.Answer = localText

	arb := NewDualAnswerArbiter(ArbiterConfig{
		Local:    local,
		External: mocks.NewMockAnswerGenerator(externalText),
		Judge:    mocks.NewMockAnswerJudge("Winner: A"),
		Observe: func(s ArbiterState) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, s)
		},
	})
	arb.Answer(context.Background(), "q", []string{"ctx"})

	assert.Equal(t, []ArbiterState{StateStart, StateLocalGenerating, StateExternalGenerating, StateComparing, StateSelected}, states)
}

func TestArbiter_ProcessingTime(t *testing.T) {
	clock := newTestClock()
	local := &slowProvider{MockProvider: mocks.NewMockProvider(), clock: clock, delay: 2 * time.Second}

	arb := NewDualAnswerArbiter(ArbiterConfig{Local: local, Now: clock.Now})
	result := arb.Answer(context.Background(), "q", []string{"some context here"})

	require.NotNil(t, result)
	assert.Equal(t, 2*time.Second, result.ProcessingTime)
}

func TestArbiter_HungJudgeFallsBackToLocal(t *testing.T) {
	local := mocks.NewMockProvider()
	local.Answer = localText
	judge := mocks.NewMockAnswerJudge("Winner: B")
	judge.Hang = true

	arb := NewDualAnswerArbiter(ArbiterConfig{
		Local:    local,
		External: mocks.NewMockAnswerGenerator(externalText),
		Judge:    judge,
		Timeout:  50 * time.Millisecond,
	})

	start := time.Now()
	result := arb.Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, judge.Calls())
	assert.Equal(t, domain.AnswerSourceLocal, result.Source)
	assert.Equal(t, domain.ReasonJudgeFailed, result.SelectionReason)
	assert.Equal(t, localText, result.Answer)
	assert.Equal(t, externalText, result.ExternalAnswer)
}

func TestArbiter_HungExternalFallsBackToLocal(t *testing.T) {
	local := mocks.NewMockProvider()
	local.Answer = localText
	external := mocks.NewMockAnswerGenerator(externalText)
	external.Hang = true
	judge := mocks.NewMockAnswerJudge("Winner: B")

	arb := NewDualAnswerArbiter(ArbiterConfig{
		Local:    local,
		External: external,
		Judge:    judge,
		Timeout:  50 * time.Millisecond,
	})

	start := time.Now()
	result := arb.Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, domain.AnswerSourceLocal, result.Source)
	assert.Equal(t, domain.ReasonExternalFailed, result.SelectionReason)
	assert.Equal(t, localText, result.Answer)
	assert.Contains(t, result.ExternalAnswer, "External model error")
	assert.Equal(t, 0, judge.Calls())
}

func TestArbiter_HungLocalSelectsExternal(t *testing.T) {
	local := &hangingProvider{MockProvider: mocks.NewMockProvider()}

	arb := NewDualAnswerArbiter(ArbiterConfig{
		Local:    local,
		External: mocks.NewMockAnswerGenerator(externalText),
		Timeout:  50 * time.Millisecond,
	})

	result := arb.Answer(context.Background(), "When was the budget approved?", []string{"ctx"})

	assert.Equal(t, domain.AnswerSourceExternal, result.Source)
	assert.Equal(t, domain.ReasonLocalFailed, result.SelectionReason)
	assert.Equal(t, externalText, result.Answer)
	assert.Contains(t, result.LocalAnswer, "Local model error")
}

type hangingProvider struct {
	*mocks.MockProvider
}

func (p *hangingProvider) GenerateAnswer(ctx context.Context, query string, contexts []string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type capturingProvider struct {
	*mocks.MockProvider
	seen *[]string
}

func (p *capturingProvider) GenerateAnswer(ctx context.Context, query string, contexts []string) (string, error) {
	*p.seen = append([]string(nil), contexts...)
	return "captured answer for the caller", nil
}

type slowProvider struct {
	*mocks.MockProvider
	clock *testClock
	delay time.Duration
}

func (p *slowProvider) GenerateAnswer(ctx context.Context, query string, contexts []string) (string, error) {
	p.clock.Advance(p.delay)
	return p.MockProvider.GenerateAnswer(ctx, query, contexts)
}
