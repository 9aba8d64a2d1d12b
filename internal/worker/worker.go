package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Ensure Pool implements JobRunner
var _ driven.JobRunner = (*Pool)(nil)

type job struct {
	name string
	run  func(ctx context.Context)
}

// Pool runs background jobs on a fixed number of goroutines.
// Jobs wait in a bounded queue; Submit blocks while the queue is full.
type Pool struct {
	logger *slog.Logger

	// Configuration
	concurrency int
	queueSize   int

	// Internal state
	mu       sync.RWMutex
	running  bool
	jobs     chan job
	ctx      context.Context
	group    *errgroup.Group
	doneCh   chan struct{}
	inFlight atomic.Int64
}

// PoolConfig holds configuration for the pool.
type PoolConfig struct {
	Logger      *slog.Logger
	Concurrency int // Number of concurrent job processors
	QueueSize   int // Jobs that may wait before Submit blocks
}

// NewPool creates a new job pool. Call Start before submitting.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Pool{
		logger:      logger,
		concurrency: concurrency,
		queueSize:   queueSize,
	}
}

// Start launches the processing goroutines. Jobs run with ctx; cancelling
// it abandons queued jobs.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true
	p.jobs = make(chan job, p.queueSize)
	p.doneCh = make(chan struct{})
	p.ctx = ctx

	p.logger.Info("worker pool starting",
		"concurrency", p.concurrency,
		"queue_size", p.queueSize,
	)

	g := &errgroup.Group{}
	for i := 0; i < p.concurrency; i++ {
		workerID := i
		g.Go(func() error {
			p.processLoop(ctx, workerID, p.jobs)
			return nil
		})
	}
	p.group = g

	doneCh := p.doneCh
	go func() {
		_ = g.Wait()
		close(doneCh)
	}()

	return nil
}

// Submit queues a job. It blocks while the queue is full, until ctx is done.
func (p *Pool) Submit(ctx context.Context, name string, run func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return domain.ErrWorkerStopped
	}

	select {
	case p.jobs <- job{name: name, run: run}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("submit %s: %w", name, ctx.Err())
	case <-p.ctx.Done():
		return domain.ErrWorkerStopped
	}
}

// Stop rejects new jobs and waits for queued and in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.jobs)
	doneCh := p.doneCh
	p.mu.Unlock()

	<-doneCh
	p.logger.Info("worker pool stopped")
}

// Wait blocks until the pool stops.
func (p *Pool) Wait() {
	p.mu.RLock()
	doneCh := p.doneCh
	p.mu.RUnlock()
	if doneCh != nil {
		<-doneCh
	}
}

// processLoop runs jobs until the queue is closed and drained or ctx ends.
func (p *Pool) processLoop(ctx context.Context, workerID int, jobs <-chan job) {
	logger := p.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker context cancelled")
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			p.runJob(ctx, j, logger)
		}
	}
}

// runJob runs one job, containing panics so a bad job cannot kill the pool.
func (p *Pool) runJob(ctx context.Context, j job, logger *slog.Logger) {
	logger = logger.With("job", j.name)
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r, "duration", time.Since(startTime))
		}
	}()

	j.run(ctx)
	logger.Debug("job finished", "duration", time.Since(startTime))
}

// Health reports pool state.
type Health struct {
	Running  bool  `json:"running"`
	Queued   int   `json:"queued"`
	InFlight int64 `json:"in_flight"`
}

// Health returns the health status of the pool.
func (p *Pool) Health() Health {
	p.mu.RLock()
	defer p.mu.RUnlock()

	health := Health{
		Running:  p.running,
		InFlight: p.inFlight.Load(),
	}
	if p.jobs != nil {
		health.Queued = len(p.jobs)
	}
	return health
}
