package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

func newTestChat(t *testing.T, models ...string) (*ChatGenerator, *fakeAPI) {
	t.Helper()
	api, srv := newFakeAPI(t)
	gen, err := NewChatGenerator(ChatConfig{
		BaseURL:           srv.URL,
		APIKey:            "sk-test",
		Models:            models,
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gen, api
}

func TestNewChatGenerator_Validation(t *testing.T) {
	if _, err := NewChatGenerator(ChatConfig{Models: []string{"m"}}); !errors.Is(err, domain.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured without API key, got %v", err)
	}
	if _, err := NewChatGenerator(ChatConfig{APIKey: "k"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without models, got %v", err)
	}
}

func TestChatGenerator_Generate(t *testing.T) {
	gen, api := newTestChat(t, "primary")

	answer, err := gen.Generate(context.Background(), "when is the exam?", []string{"c1", "c2", "c3", "c4", "c5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "fake answer" {
		t.Errorf("unexpected answer %q", answer)
	}

	req := api.lastChat()
	if req.Model != "primary" {
		t.Errorf("expected model primary, got %s", req.Model)
	}
	if req.MaxTokens != chatAnswerTokens || req.Temperature != 0.3 || req.TopP != 0.9 {
		t.Errorf("unexpected sampling parameters: %+v", req)
	}
	user := req.Messages[len(req.Messages)-1].Content
	if !strings.Contains(user, "c4") || strings.Contains(user, "c5") {
		t.Error("expected only the first four contexts in the prompt")
	}
}

func TestChatGenerator_TruncatesContext(t *testing.T) {
	gen, api := newTestChat(t, "primary")

	long := strings.Repeat("x", 3000)
	if _, err := gen.Generate(context.Background(), "q", []string{long}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	user := api.lastChat().Messages[1].Content
	if !strings.Contains(user, strings.Repeat("x", chatContextLimit)+"...") {
		t.Error("expected context cut at the limit with an ellipsis")
	}
	if strings.Contains(user, strings.Repeat("x", chatContextLimit+1)) {
		t.Error("context was not truncated")
	}
}

func TestChatGenerator_ModelFallback(t *testing.T) {
	gen, api := newTestChat(t, "first", "second", "third")
	api.configure(func(a *fakeAPI) { a.failModels["first"] = true })

	answer, err := gen.Generate(context.Background(), "q", []string{"ctx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "fake answer" {
		t.Errorf("unexpected answer %q", answer)
	}
	models := api.models()
	if len(models) != 2 || models[0] != "first" || models[1] != "second" {
		t.Errorf("expected first then second, got %v", models)
	}
}

func TestChatGenerator_AllModelsFail(t *testing.T) {
	gen, api := newTestChat(t, "first", "second")
	api.configure(func(a *fakeAPI) { a.failModels["first"] = true })
	api.configure(func(a *fakeAPI) { a.failModels["second"] = true })

	_, err := gen.Generate(context.Background(), "q", []string{"ctx"})
	if !errors.Is(err, ErrAllModelsFailed) {
		t.Errorf("expected ErrAllModelsFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("expected last model error in message, got %v", err)
	}
}

func TestChatGenerator_Judge(t *testing.T) {
	testCases := []struct {
		name   string
		reply  string
		winner domain.AnswerSource
		clear  bool
	}{
		{"external wins", "Winner: B - more specific dates", domain.AnswerSourceExternal, true},
		{"local wins", "Winner: A - complete", domain.AnswerSourceLocal, true},
		{"unparseable", "Both are fine", domain.AnswerSourceLocal, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen, api := newTestChat(t, "judge")
			api.configure(func(a *fakeAPI) { a.chatReply = tc.reply })

			verdict, err := gen.Judge(context.Background(), "q", "local answer", "external answer")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if verdict.Winner != tc.winner || verdict.Clear != tc.clear {
				t.Errorf("unexpected verdict %+v", verdict)
			}

			req := api.lastChat()
			if req.Temperature != 0.1 || req.MaxTokens != judgeAnswerTokens {
				t.Errorf("unexpected judge parameters: %+v", req)
			}
			prompt := req.Messages[0].Content
			if !strings.Contains(prompt, "Answer A:\nlocal answer") || !strings.Contains(prompt, "Answer B:\nexternal answer") {
				t.Error("expected local as A and external as B")
			}
		})
	}
}

func TestChatGenerator_JudgeModels(t *testing.T) {
	api, srv := newFakeAPI(t)
	gen, err := NewChatGenerator(ChatConfig{
		BaseURL:           srv.URL,
		APIKey:            "k",
		Models:            []string{"answerer"},
		JudgeModels:       []string{"referee"},
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	api.configure(func(a *fakeAPI) { a.chatReply = "Winner: A" })

	if _, err := gen.Judge(context.Background(), "q", "a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := api.lastChat().Model; got != "referee" {
		t.Errorf("expected judge model, got %s", got)
	}
}

func TestChatGenerator_Ping(t *testing.T) {
	gen, api := newTestChat(t, "m")
	if err := gen.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	api.configure(func(a *fakeAPI) { a.failModels["m"] = true })
	if err := gen.Ping(context.Background()); err == nil {
		t.Error("expected ping failure")
	}
	if gen.Model() != "m" {
		t.Errorf("unexpected model %s", gen.Model())
	}
}
