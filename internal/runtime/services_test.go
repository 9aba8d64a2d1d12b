package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-docqa/internal/core/services"
)

func newTestServices() *Services {
	return NewServices(domain.NewRuntimeConfig(domain.BackendLocal, "memory"), mocks.NewMockProvider())
}

func TestNewServices(t *testing.T) {
	svc := newTestServices()

	if svc.Config() == nil {
		t.Fatal("expected config")
	}
	if svc.Provider() == nil {
		t.Fatal("expected provider")
	}
	if svc.ExternalGenerator() != nil {
		t.Error("expected no external generator")
	}
	if svc.Judge() != nil {
		t.Error("expected no judge")
	}
}

func TestServices_SetExternalGenerator(t *testing.T) {
	svc := newTestServices()

	svc.SetExternalGenerator(mocks.NewMockAnswerGenerator("ok"))
	if !svc.Config().ExternalAvailable() {
		t.Error("expected external available")
	}
	if !svc.Config().CanDualAnswer() {
		t.Error("expected dual answers enabled")
	}

	svc.SetExternalGenerator(nil)
	if svc.Config().ExternalAvailable() {
		t.Error("expected external unavailable")
	}
}

func TestServices_SetJudge(t *testing.T) {
	svc := newTestServices()

	svc.SetJudge(mocks.NewMockAnswerJudge("Winner: A"))
	if !svc.Config().JudgeAvailable() {
		t.Error("expected judge available")
	}
}

func TestServices_ValidateAndSetExternal(t *testing.T) {
	svc := newTestServices()
	ctx := context.Background()

	failing := func(context.Context) error { return errors.New("unreachable") }
	if err := svc.ValidateAndSetExternal(ctx, mocks.NewMockAnswerGenerator("x"), failing); err == nil {
		t.Fatal("expected check error")
	}
	if svc.ExternalGenerator() != nil {
		t.Error("failed check must not install generator")
	}

	gen := mocks.NewMockAnswerGenerator("x")
	if err := svc.ValidateAndSetExternal(ctx, gen, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.ExternalGenerator() != gen {
		t.Error("expected generator installed")
	}
}

func TestServices_FeedsArbiter(t *testing.T) {
	svc := newTestServices()
	local := mocks.NewMockProvider()
	local.Answer = "Local answer about the report."
	arbiter := services.NewDualAnswerArbiter(services.ArbiterConfig{Local: local, Sources: svc})

	result := arbiter.Answer(context.Background(), "what?", []string{"ctx"})
	if result.SelectionReason != domain.ReasonExternalNotConfigured {
		t.Errorf("expected %q, got %q", domain.ReasonExternalNotConfigured, result.SelectionReason)
	}

	svc.SetExternalGenerator(mocks.NewMockAnswerGenerator("External answer about the report."))
	svc.SetJudge(mocks.NewMockAnswerJudge("Winner: B - more detail"))

	result = arbiter.Answer(context.Background(), "what?", []string{"ctx"})
	if result.Source != domain.AnswerSourceExternal {
		t.Errorf("expected external source, got %s", result.Source)
	}
}

func TestServices_Close(t *testing.T) {
	svc := newTestServices()
	svc.SetExternalGenerator(mocks.NewMockAnswerGenerator("x"))
	svc.SetJudge(mocks.NewMockAnswerJudge("Winner: A"))

	if err := svc.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Config().ExternalAvailable() || svc.Config().JudgeAvailable() {
		t.Error("expected flags cleared")
	}
}
