package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// DefaultTaskMaxAge is how long task records are kept by default.
const DefaultTaskMaxAge = 24 * time.Hour

// TaskTrackerConfig holds TaskTracker dependencies.
type TaskTrackerConfig struct {
	Store  driven.TaskStore
	Logger *slog.Logger

	// Lock, when set, keeps instances sharing one store from running
	// the periodic cleanup at the same time.
	Lock driven.DistributedLock

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// NewID generates task identifiers. Defaults to domain.GenerateTaskID.
	NewID func() string
}

// TaskTracker records the progress of background ingestion runs.
// Every Update overwrites the whole record and stamps UpdatedAt.
type TaskTracker struct {
	store  driven.TaskStore
	lock   driven.DistributedLock
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// cleanupLockName is the lock taken around each periodic cleanup
const cleanupLockName = "task-cleanup"

// NewTaskTracker creates a TaskTracker over the given store.
func NewTaskTracker(cfg TaskTrackerConfig) *TaskTracker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = domain.GenerateTaskID
	}
	return &TaskTracker{
		store:  cfg.Store,
		lock:   cfg.Lock,
		logger: cfg.Logger,
		now:    cfg.Now,
		newID:  cfg.NewID,
	}
}

// Start creates a new task in the processing state with progress 0.
func (t *TaskTracker) Start(ctx context.Context) (*domain.Task, error) {
	task := domain.NewTask(t.newID(), t.now())
	if err := t.store.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return task, nil
}

// Update overwrites the task record. Progress is clamped to [0, 100] and
// reset to 0 when the task fails.
func (t *TaskTracker) Update(ctx context.Context, id string, status domain.TaskStatus, progress int, message string, result *domain.TaskResult) error {
	progress = domain.ClampProgress(progress)
	if status == domain.TaskStatusFailed {
		progress = 0
	}

	task := &domain.Task{
		ID:        id,
		Status:    status,
		Progress:  progress,
		Message:   message,
		Result:    result,
		UpdatedAt: t.now(),
	}
	if err := t.store.Save(ctx, task); err != nil {
		t.logger.Error("failed to update task", "task_id", id, "status", status, "error", err)
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return nil
}

// Progress records an intermediate processing stage.
func (t *TaskTracker) Progress(ctx context.Context, id string, progress int, message string) error {
	return t.Update(ctx, id, domain.TaskStatusProcessing, progress, message, nil)
}

// Complete marks the task completed with its result.
func (t *TaskTracker) Complete(ctx context.Context, id string, message string, result *domain.TaskResult) error {
	return t.Update(ctx, id, domain.TaskStatusCompleted, domain.ProgressDone, message, result)
}

// Fail marks the task failed.
func (t *TaskTracker) Fail(ctx context.Context, id string, message string) error {
	return t.Update(ctx, id, domain.TaskStatusFailed, 0, message, nil)
}

// Get returns the task, or the not_found sentinel record if the ID is unknown.
func (t *TaskTracker) Get(ctx context.Context, id string) (*domain.Task, error) {
	task, err := t.store.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFoundTask(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// Cleanup removes every task not updated within maxAge, whatever its status.
func (t *TaskTracker) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge < 0 {
		return 0, fmt.Errorf("max age %s: %w", maxAge, domain.ErrInvalidInput)
	}
	removed, err := t.store.DeleteOlderThan(ctx, t.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("cleanup tasks: %w", err)
	}
	if removed > 0 {
		t.logger.Info("cleaned up old tasks", "removed", removed, "max_age", maxAge)
	}
	return removed, nil
}

// RunCleanupLoop calls Cleanup every interval until ctx is cancelled.
func (t *TaskTracker) RunCleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.cleanupOnce(ctx, interval, maxAge)
		}
	}
}

func (t *TaskTracker) cleanupOnce(ctx context.Context, interval, maxAge time.Duration) {
	if t.lock != nil {
		ok, err := t.lock.Acquire(ctx, cleanupLockName, interval)
		if err != nil {
			t.logger.Warn("task cleanup lock failed", "error", err)
			return
		}
		if !ok {
			t.logger.Debug("task cleanup running elsewhere")
			return
		}
		defer func() {
			if err := t.lock.Release(context.WithoutCancel(ctx), cleanupLockName); err != nil {
				t.logger.Warn("task cleanup unlock failed", "error", err)
			}
		}()
	}
	if _, err := t.Cleanup(ctx, maxAge); err != nil {
		t.logger.Warn("task cleanup failed", "error", err)
	}
}
