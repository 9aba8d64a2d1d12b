package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TaskStore = (*TaskStore)(nil)

const (
	// Key prefixes for Redis
	taskPrefix   = "docqa:task:"
	taskAgeIndex = "docqa:tasks:updated"
)

// TaskStore implements driven.TaskStore using Redis.
// Each task is a JSON value; a sorted set scored by UpdatedAt indexes them by age.
type TaskStore struct {
	client *redis.Client
	// ttl bounds how long an abandoned record survives if cleanup never runs
	ttl time.Duration
}

// NewTaskStore creates a new Redis-backed TaskStore.
// ttl <= 0 keeps records until DeleteOlderThan removes them.
func NewTaskStore(client *redis.Client, ttl time.Duration) *TaskStore {
	return &TaskStore{client: client, ttl: ttl}
}

// Save stores the task and updates its age index entry
func (s *TaskStore) Save(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	// Use pipeline for atomic operations
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, taskPrefix+task.ID, data, s.ttl)
	pipe.ZAdd(ctx, taskAgeIndex, redis.Z{
		Score:  float64(task.UpdatedAt.UnixMilli()),
		Member: task.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// Get retrieves a task by ID
func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	data, err := s.client.Get(ctx, taskPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// DeleteOlderThan removes tasks whose UpdatedAt is before cutoff.
// Index entries whose record already expired are dropped without being counted.
func (s *TaskStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	// exclusive upper bound: a task updated exactly at cutoff stays
	upper := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	ids, err := s.client.ZRangeByScore(ctx, taskAgeIndex, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list old tasks: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = taskPrefix + id
		members[i] = id
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, taskAgeIndex, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete old tasks: %w", err)
	}
	return int(del.Val()), nil
}

// Ping checks if the Redis backend is healthy.
func (s *TaskStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *TaskStore) Close() error {
	return s.client.Close()
}
