package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-docqa/internal/adapters/driven/filestore"
	"github.com/custodia-labs/sercha-docqa/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-docqa/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-docqa/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-docqa/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/sercha-docqa/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-docqa/internal/cache"
	"github.com/custodia-labs/sercha-docqa/internal/config"
	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-docqa/internal/core/services"
	"github.com/custodia-labs/sercha-docqa/internal/extractors"
	"github.com/custodia-labs/sercha-docqa/internal/postprocessors"
	"github.com/custodia-labs/sercha-docqa/internal/runtime"
	"github.com/custodia-labs/sercha-docqa/internal/worker"
)

// externalCheckTimeout bounds the startup check of the external answer source
const externalCheckTimeout = 10 * time.Second

// pingFunc adapts a health function to http.Pinger
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// app holds every wired component for one process
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	runtime     *runtime.Services
	provider    driven.CapabilityProvider
	embeddings  *cache.Cache[[]float32]
	searchCache *cache.Cache[[]domain.SearchResult]

	documentStore driven.DocumentStore
	taskStore     driven.TaskStore
	lock          driven.DistributedLock
	files         *filestore.Store
	pool          *worker.Pool
	tracker       *services.TaskTracker

	ingestion driving.IngestionService
	query     driving.QueryService
	documents driving.DocumentService

	checks  map[string]http.Pinger
	closers []func() error

	pg *postgres.DB
}

// newApp wires components from configuration. Call close when done.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		checks: make(map[string]http.Pinger),
	}
	wired := false
	defer func() {
		if !wired {
			_ = a.close()
		}
	}()

	// Capability provider, chosen once
	factory := ai.NewFactory(logger)
	base, err := factory.CreateProvider(&driven.ProviderSettings{
		Backend:           cfg.AI.Backend,
		BaseURL:           cfg.AI.BaseURL,
		APIKey:            cfg.AI.APIKey,
		EmbeddingModel:    cfg.AI.EmbeddingModel,
		ChatModel:         cfg.AI.ChatModel,
		Timeout:           cfg.AI.Timeout,
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	log.Printf("Capability provider: %s (%d dimensions)", base.Name(), base.Dimensions())

	cacheCfg := cache.Config{MaxSize: cfg.Cache.MaxSize, TTL: cfg.Cache.TTL}
	a.embeddings = cache.New[[]float32](cacheCfg)
	a.searchCache = cache.New[[]domain.SearchResult](cacheCfg)
	a.provider = cache.NewCachedProvider(base, a.embeddings)

	a.runtime = runtime.NewServices(domain.NewRuntimeConfig(cfg.AI.Backend, cfg.Storage.Backend), a.provider)
	a.closers = append(a.closers, a.runtime.Close)
	a.checks["ai"] = pingFunc(base.HealthCheck)

	if err := a.setupExternal(ctx, factory); err != nil {
		return nil, err
	}

	// Storage
	if err := a.setupDocumentStore(ctx); err != nil {
		return nil, err
	}
	if err := a.setupTaskStore(ctx); err != nil {
		return nil, err
	}

	a.files, err = filestore.New(cfg.Uploads.Dir)
	if err != nil {
		return nil, fmt.Errorf("create upload store: %w", err)
	}

	a.pool = worker.NewPool(worker.PoolConfig{
		Logger:      logger,
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
	})
	a.checks["worker"] = pingFunc(func(context.Context) error {
		if !a.pool.Health().Running {
			return domain.ErrWorkerStopped
		}
		return nil
	})

	a.tracker = services.NewTaskTracker(services.TaskTrackerConfig{
		Store:  a.taskStore,
		Lock:   a.lock,
		Logger: logger,
	})

	chunkCfg := postprocessors.DefaultChunkConfig()
	chunkCfg.TargetSize = cfg.Chunking.Size
	chunkCfg.Overlap = cfg.Chunking.Overlap

	a.ingestion = services.NewIngestionService(services.IngestionConfig{
		Tracker:           a.tracker,
		Files:             a.files,
		Extractors:        extractors.DefaultRegistry(nil),
		Pipeline:          postprocessors.DefaultPipeline(chunkCfg, cfg.Chunking.Deduplicate),
		Provider:          a.provider,
		Store:             a.documentStore,
		Runner:            a.pool,
		SearchCache:       a.searchCache,
		AllowedExtensions: cfg.Uploads.AllowedExtensions,
		SummaryWords:      cfg.AI.SummaryWords,
		Logger:            logger,
	})

	arbiter := services.NewDualAnswerArbiter(services.ArbiterConfig{
		Local:        a.provider,
		Sources:      a.runtime,
		Timeout:      cfg.AI.Timeout,
		SummaryWords: cfg.AI.SummaryWords,
		Logger:       logger,
	})

	a.query = services.NewQueryService(services.QueryServiceConfig{
		Provider:      a.provider,
		Store:         a.documentStore,
		Arbiter:       arbiter,
		SearchCache:   a.searchCache,
		Embeddings:    a.embeddings,
		RerankTimeout: cfg.AI.Timeout,
		Logger:        logger,
	})

	a.documents = services.NewDocumentService(a.documentStore)

	wired = true
	return a, nil
}

// setupExternal installs the second answer source when configured.
// A failed check leaves the service running with local answers only.
func (a *app) setupExternal(ctx context.Context, factory driven.ProviderFactory) error {
	if !a.cfg.ExternalActive() {
		log.Println("External answer source: disabled")
		return nil
	}

	gen, judge, err := factory.CreateExternal(&driven.ExternalSettings{
		BaseURL:           a.cfg.External.BaseURL,
		APIKey:            a.cfg.External.APIKey,
		Models:            a.cfg.External.Models,
		JudgeEnabled:      a.cfg.External.JudgeEnabled,
		Timeout:           a.cfg.External.Timeout,
		RequestsPerSecond: a.cfg.External.RequestsPerSecond,
	})
	if err != nil {
		return fmt.Errorf("create external source: %w", err)
	}
	if gen == nil {
		return nil
	}
	if c, ok := gen.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	var check func(context.Context) error
	if p, ok := gen.(http.Pinger); ok {
		check = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, externalCheckTimeout)
			defer cancel()
			return p.Ping(ctx)
		}
	}

	if err := a.runtime.ValidateAndSetExternal(ctx, gen, check); err != nil {
		a.logger.Warn("external answer source unavailable, using local answers only", "error", err)
		return nil
	}
	a.runtime.SetJudge(judge)
	log.Printf("External answer source: %s (judge: %v)", gen.Model(), judge != nil)
	return nil
}

func (a *app) setupDocumentStore(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.StorageMemory:
		a.documentStore = memory.NewDocumentStore()
		log.Println("Document store: in-memory (documents are lost on exit)")

	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, a.cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.documentStore = store
		log.Printf("Document store: sqlite (%s)", a.cfg.Storage.SQLitePath)

	case config.StoragePostgres:
		db, err := a.postgres(ctx)
		if err != nil {
			return err
		}
		a.documentStore = postgres.NewDocumentStore(db)
		log.Println("Document store: PostgreSQL")

	default:
		return fmt.Errorf("%w: storage backend %q", domain.ErrInvalidInput, a.cfg.Storage.Backend)
	}
	return nil
}

func (a *app) setupTaskStore(ctx context.Context) error {
	switch a.cfg.Tasks.Backend {
	case config.StorageMemory:
		a.taskStore = memory.NewTaskStore()

	case config.TasksRedis:
		opts, err := goredis.ParseURL(a.cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		store := redisadapter.NewTaskStore(client, a.cfg.Tasks.MaxAge)
		a.closers = append(a.closers, store.Close)
		a.taskStore = store
		a.lock = redisadapter.NewLock(client)
		a.checks["redis"] = store
		log.Println("Task store: Redis")

	case config.StoragePostgres:
		db, err := a.postgres(ctx)
		if err != nil {
			return err
		}
		a.taskStore = postgres.NewTaskStore(db)
		log.Println("Task store: PostgreSQL")

	default:
		return fmt.Errorf("%w: task backend %q", domain.ErrInvalidInput, a.cfg.Tasks.Backend)
	}

	// Instances sharing PostgreSQL coordinate cleanup with advisory locks
	if a.lock == nil && a.pg != nil {
		a.lock = postgres.NewAdvisoryLock(a.pg)
	}
	return nil
}

// postgres connects once and initialises the schema
func (a *app) postgres(ctx context.Context) (*postgres.DB, error) {
	if a.pg != nil {
		return a.pg, nil
	}
	pgCfg := postgres.DefaultConfig(a.cfg.Storage.PostgresURL)
	if a.cfg.Storage.PostgresSchema != "" {
		pgCfg.Schema = a.cfg.Storage.PostgresSchema
	}
	if a.cfg.Storage.MaxOpenConns > 0 {
		pgCfg.MaxOpenConns = a.cfg.Storage.MaxOpenConns
	}
	if a.cfg.Storage.MaxIdleConns > 0 {
		pgCfg.MaxIdleConns = a.cfg.Storage.MaxIdleConns
	}

	db, err := postgres.Connect(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.pg = db
	a.closers = append(a.closers, db.Close)
	a.checks["database"] = db
	log.Printf("Connected to PostgreSQL (schema %s)", db.Schema())
	return db, nil
}

// start launches the background pool. Jobs keep running through
// cancellation of ctx so that close can drain them.
func (a *app) start(ctx context.Context) error {
	return a.pool.Start(context.WithoutCancel(ctx))
}

// close drains the pool and releases resources in reverse order
func (a *app) close() error {
	if a.pool != nil {
		a.pool.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
