package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	maxUploadBytes int64
	allowedOrigins []string

	// Services
	ingestionService driving.IngestionService
	queryService     driving.QueryService
	docService       driving.DocumentService

	// Infrastructure health checks, keyed by component name
	checks map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// MaxUploadBytes caps the multipart request body of an upload
	MaxUploadBytes int64

	// AllowedOrigins enables CORS for the listed origins ("*" for any)
	AllowedOrigins []string

	Logger *slog.Logger
}

// DefaultMaxUploadBytes is the upload limit when Config leaves it unset.
const DefaultMaxUploadBytes = 50 << 20

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8000,
		Version:        "dev",
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
}

// NewServer creates a new HTTP server. checks may be nil.
func NewServer(
	cfg Config,
	ingestionService driving.IngestionService,
	queryService driving.QueryService,
	docService driving.DocumentService,
	checks map[string]Pinger,
) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		logger:           cfg.Logger,
		maxUploadBytes:   cfg.MaxUploadBytes,
		allowedOrigins:   cfg.AllowedOrigins,
		ingestionService: ingestionService,
		queryService:     queryService,
		docService:       docService,
		checks:           checks,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Ingestion endpoints
	s.router.HandleFunc("POST /api/v1/upload", s.handleUpload)
	s.router.HandleFunc("GET /api/v1/upload/status/{id}", s.handleUploadStatus)

	// Query endpoints
	s.router.HandleFunc("GET /api/v1/search", s.handleSearch)

	// Document endpoints
	s.router.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	s.router.HandleFunc("GET /api/v1/documents/{id}", s.handleGetDocument)
	s.router.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDeleteDocument)

	// Cache endpoints
	s.router.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	s.router.HandleFunc("POST /api/v1/cache/clear", s.handleClearCache)

	// Admin endpoints
	s.router.HandleFunc("GET /api/v1/metrics", s.handleMetrics)
	s.router.HandleFunc("POST /api/v1/admin/cleanup-tasks", s.handleCleanupTasks)
}

// Handler returns the router wrapped in recovery, request logging and,
// when origins are configured, CORS
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	if len(s.allowedOrigins) > 0 {
		h = NewCORSMiddleware(s.allowedOrigins).Handler(h)
	}
	h = NewLoggingMiddleware(s.logger).Handler(h)
	return NewRecoveryMiddleware(s.logger).Handler(h)
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
