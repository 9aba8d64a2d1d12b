package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskStore = (*TaskStore)(nil)

// TaskStore implements driven.TaskStore using PostgreSQL
type TaskStore struct {
	db *DB
}

// NewTaskStore creates a new TaskStore
func NewTaskStore(db *DB) *TaskStore {
	return &TaskStore{db: db}
}

// Save upserts the full task record
func (s *TaskStore) Save(ctx context.Context, task *domain.Task) error {
	var result []byte
	if task.Result != nil {
		var err error
		if result, err = json.Marshal(task.Result); err != nil {
			return fmt.Errorf("failed to marshal task result: %w", err)
		}
	}

	query := `
		INSERT INTO tasks (id, status, progress, message, result, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			message = EXCLUDED.message,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		task.ID, string(task.Status), task.Progress, task.Message, result, task.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Get retrieves a task by ID
func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	var (
		task   domain.Task
		status string
		result []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, progress, message, result, updated_at
		FROM tasks
		WHERE id = $1
	`, id).Scan(&task.ID, &status, &task.Progress, &task.Message, &result, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	if len(result) > 0 {
		task.Result = &domain.TaskResult{}
		if err := json.Unmarshal(result, task.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
		}
	}
	return &task, nil
}

// DeleteOlderThan removes tasks last updated before cutoff
func (s *TaskStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close is a no-op; the DB is closed by its owner
func (s *TaskStore) Close() error {
	return nil
}
