package runtime

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-docqa/internal/core/services"
)

// Ensure Services can feed the arbiter
var _ services.AnswerSources = (*Services)(nil)

// Services holds the capability provider chosen at startup and the answer
// sources that may be reconfigured while running.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	// Fixed for the process lifetime
	provider driven.CapabilityProvider

	// Dynamic sources (can be nil, updated at runtime)
	external driven.AnswerGenerator
	judge    driven.AnswerJudge
}

// NewServices creates a new Services registry around a provider
func NewServices(config *domain.RuntimeConfig, provider driven.CapabilityProvider) *Services {
	return &Services{
		config:   config,
		provider: provider,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// Provider returns the capability provider
func (s *Services) Provider() driven.CapabilityProvider {
	return s.provider
}

// ExternalGenerator returns the current external answer source (may be nil)
func (s *Services) ExternalGenerator() driven.AnswerGenerator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.external
}

// Judge returns the current answer judge (may be nil)
func (s *Services) Judge() driven.AnswerJudge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.judge
}

// SetExternalGenerator updates the external source and the config flag.
func (s *Services) SetExternalGenerator(gen driven.AnswerGenerator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.external = gen
	s.config.SetExternalAvailable(gen != nil)
}

// SetJudge updates the judge and the config flag.
func (s *Services) SetJudge(judge driven.AnswerJudge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.judge = judge
	s.config.SetJudgeAvailable(judge != nil)
}

// ValidateAndSetExternal health-checks the generator before installing it.
// A failed check leaves the previous source in place.
func (s *Services) ValidateAndSetExternal(ctx context.Context, gen driven.AnswerGenerator, check func(context.Context) error) error {
	if gen == nil {
		s.SetExternalGenerator(nil)
		return nil
	}
	if check != nil {
		if err := check(ctx); err != nil {
			return err
		}
	}
	s.SetExternalGenerator(gen)
	return nil
}

// Close shuts down the provider and clears the dynamic sources
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.external = nil
	s.judge = nil
	s.config.SetExternalAvailable(false)
	s.config.SetJudgeAvailable(false)

	if s.provider != nil {
		return s.provider.Close()
	}
	return nil
}
