package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Ensure Factory implements ProviderFactory
var _ driven.ProviderFactory = (*Factory)(nil)

// DefaultHealthTimeout bounds the remote health check in auto mode
const DefaultHealthTimeout = 5 * time.Second

// Factory creates capability providers based on configuration.
// The backend is chosen once; callers hold the result for the process lifetime.
type Factory struct {
	logger        *slog.Logger
	healthTimeout time.Duration
	httpClient    *http.Client
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithHTTPClient sets the HTTP client used by remote adapters
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *Factory) { f.httpClient = c }
}

// WithHealthTimeout sets the auto-mode health check timeout
func WithHealthTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) { f.healthTimeout = d }
}

// NewFactory creates a new provider factory
func NewFactory(logger *slog.Logger, opts ...FactoryOption) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Factory{logger: logger, healthTimeout: DefaultHealthTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateProvider builds the provider for settings.Backend:
//   - local: the offline backend
//   - remote: the remote backend, falling back to local for non-embedding calls
//   - auto: remote if configured and healthy, otherwise local
func (f *Factory) CreateProvider(settings *driven.ProviderSettings) (driven.CapabilityProvider, error) {
	if settings == nil {
		settings = &driven.ProviderSettings{Backend: domain.BackendLocal}
	}

	switch settings.Backend {
	case domain.BackendLocal, "":
		f.logger.Info("using local capability backend")
		return NewLocalBackend(LocalDimensions), nil

	case domain.BackendRemote:
		if !settings.IsRemoteConfigured() {
			return nil, fmt.Errorf("%w: remote backend needs a base URL or API key", domain.ErrNotConfigured)
		}
		remote, err := f.remote(settings)
		if err != nil {
			return nil, err
		}
		f.logger.Info("using remote capability backend", "model", settings.EmbeddingModel)
		return NewFallbackProvider(f.logger, remote, NewLocalBackend(LocalDimensions)), nil

	case domain.BackendAuto:
		if !settings.IsRemoteConfigured() {
			f.logger.Info("remote backend not configured, using local")
			return NewLocalBackend(LocalDimensions), nil
		}
		remote, err := f.remote(settings)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), f.healthTimeout)
		defer cancel()
		if err := remote.HealthCheck(ctx); err != nil {
			f.logger.Warn("remote backend unhealthy, using local", "error", err)
			_ = remote.Close()
			return NewLocalBackend(LocalDimensions), nil
		}
		f.logger.Info("remote backend healthy, using remote")
		return NewFallbackProvider(f.logger, remote, NewLocalBackend(LocalDimensions)), nil

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Backend)
	}
}

// CreateExternal builds the external answer source and, when enabled, its judge
func (f *Factory) CreateExternal(settings *driven.ExternalSettings) (driven.AnswerGenerator, driven.AnswerJudge, error) {
	if !settings.IsConfigured() {
		return nil, nil, nil
	}

	gen, err := NewChatGenerator(ChatConfig{
		BaseURL:           settings.BaseURL,
		APIKey:            settings.APIKey,
		Models:            settings.Models,
		Timeout:           settings.Timeout,
		RequestsPerSecond: settings.RequestsPerSecond,
		HTTPClient:        f.httpClient,
		Logger:            f.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if !settings.JudgeEnabled {
		return gen, nil, nil
	}
	return gen, gen, nil
}

func (f *Factory) remote(settings *driven.ProviderSettings) (*RemoteBackend, error) {
	return NewRemoteBackend(RemoteConfig{
		BaseURL:           settings.BaseURL,
		APIKey:            settings.APIKey,
		EmbeddingModel:    settings.EmbeddingModel,
		ChatModel:         settings.ChatModel,
		Timeout:           settings.Timeout,
		RequestsPerSecond: settings.RequestsPerSecond,
		HTTPClient:        f.httpClient,
	})
}
