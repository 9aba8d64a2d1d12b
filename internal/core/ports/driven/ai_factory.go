package driven

import "time"

// ProviderSettings configures capability backend selection
type ProviderSettings struct {
	// Backend is "local", "remote" or "auto"
	Backend string

	// BaseURL is the OpenAI-compatible endpoint for the remote backend
	BaseURL string
	APIKey  string

	EmbeddingModel string
	ChatModel      string

	// Timeout bounds each remote request; zero uses the adapter default
	Timeout time.Duration
	// RequestsPerSecond limits remote calls; zero disables limiting
	RequestsPerSecond float64
}

// IsRemoteConfigured reports whether a remote backend has the minimum settings
func (s *ProviderSettings) IsRemoteConfigured() bool {
	return s != nil && (s.BaseURL != "" || s.APIKey != "")
}

// ExternalSettings configures the independent answer source and its judge
type ExternalSettings struct {
	BaseURL string
	APIKey  string

	// Models are tried in order
	Models []string

	// JudgeEnabled turns on LLM comparison of the two answers
	JudgeEnabled bool

	Timeout           time.Duration
	RequestsPerSecond float64
}

// IsConfigured reports whether the external source can be built
func (s *ExternalSettings) IsConfigured() bool {
	return s != nil && s.APIKey != "" && len(s.Models) > 0
}

// ProviderFactory creates capability providers from configuration
type ProviderFactory interface {
	// CreateProvider selects and builds the provider variant once
	CreateProvider(settings *ProviderSettings) (CapabilityProvider, error)

	// CreateExternal builds the external answer source and judge.
	// Both are nil when settings are not configured; judge is nil when disabled.
	CreateExternal(settings *ExternalSettings) (AnswerGenerator, AnswerJudge, error)
}
