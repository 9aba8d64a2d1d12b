package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven/mocks"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(clock *testClock) *TaskTracker {
	return NewTaskTracker(TaskTrackerConfig{Store: mocks.NewMockTaskStore(), Now: clock.Now})
}

func TestTaskTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(newTestClock())

	task, err := tracker.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, task.Status)
	assert.Equal(t, 0, task.Progress)

	got, err := tracker.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)

	require.NoError(t, tracker.Update(ctx, task.ID, domain.TaskStatusCompleted, 100, "done", &domain.TaskResult{ChunksCount: 2}))
	got, err = tracker.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 2, got.Result.ChunksCount)
}

func TestTaskTracker_UnknownID(t *testing.T) {
	tracker := newTestTracker(newTestClock())

	got, err := tracker.Get(context.Background(), "unknown-id")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusNotFound, got.Status)
	assert.Equal(t, "Task not found", got.Message)
}

func TestTaskTracker_UpdateOverwrites(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	tracker := newTestTracker(clock)

	task, err := tracker.Start(ctx)
	require.NoError(t, err)

	require.NoError(t, tracker.Update(ctx, task.ID, domain.TaskStatusProcessing, 60, "embedding", &domain.TaskResult{Title: "x"}))
	clock.Advance(time.Second)
	require.NoError(t, tracker.Progress(ctx, task.ID, 80, "saving"))

	got, err := tracker.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress)
	assert.Equal(t, "saving", got.Message)
	assert.Nil(t, got.Result, "update replaces the record instead of merging")
	assert.Equal(t, clock.Now(), got.UpdatedAt)
}

func TestTaskTracker_FailResetsProgress(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(newTestClock())

	task, err := tracker.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, tracker.Progress(ctx, task.ID, 40, "extracting"))
	require.NoError(t, tracker.Update(ctx, task.ID, domain.TaskStatusFailed, 40, "boom", nil))

	got, err := tracker.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, 0, got.Progress)
}

func TestTaskTracker_ClampsProgress(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker(newTestClock())

	task, err := tracker.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, tracker.Progress(ctx, task.ID, 250, "over"))

	got, err := tracker.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
}

func TestTaskTracker_UniqueIDs(t *testing.T) {
	ctx := context.Background()
	tracker := NewTaskTracker(TaskTrackerConfig{Store: mocks.NewMockTaskStore()})

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		task, err := tracker.Start(ctx)
		require.NoError(t, err)
		require.False(t, seen[task.ID])
		seen[task.ID] = true
	}
}

func TestTaskTracker_Cleanup(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	tracker := newTestTracker(clock)

	stuck, err := tracker.Start(ctx)
	require.NoError(t, err)
	done, err := tracker.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, tracker.Complete(ctx, done.ID, "ok", nil))

	clock.Advance(25 * time.Hour)
	fresh, err := tracker.Start(ctx)
	require.NoError(t, err)

	removed, err := tracker.Cleanup(ctx, DefaultTaskMaxAge)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	got, _ := tracker.Get(ctx, stuck.ID)
	assert.Equal(t, domain.TaskStatusNotFound, got.Status, "non-terminal tasks are reclaimed too")
	got, _ = tracker.Get(ctx, done.ID)
	assert.Equal(t, domain.TaskStatusNotFound, got.Status)
	got, _ = tracker.Get(ctx, fresh.ID)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)
}

func TestTaskTracker_CleanupNegativeAge(t *testing.T) {
	tracker := newTestTracker(newTestClock())
	_, err := tracker.Cleanup(context.Background(), -time.Second)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTaskTracker_RunCleanupLoopStops(t *testing.T) {
	tracker := NewTaskTracker(TaskTrackerConfig{Store: mocks.NewMockTaskStore()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tracker.RunCleanupLoop(ctx, 5*time.Millisecond, time.Hour)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}

func TestTaskTracker_CleanupOnceTakesLock(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	lock := mocks.NewMockLock()
	tracker := NewTaskTracker(TaskTrackerConfig{Store: mocks.NewMockTaskStore(), Now: clock.Now, Lock: lock})

	old, err := tracker.Start(ctx)
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)

	tracker.cleanupOnce(ctx, time.Minute, DefaultTaskMaxAge)
	assert.Equal(t, 1, lock.Acquired())

	got, _ := tracker.Get(ctx, old.ID)
	assert.Equal(t, domain.TaskStatusNotFound, got.Status)

	// released afterwards, so the next run can take it again
	tracker.cleanupOnce(ctx, time.Minute, DefaultTaskMaxAge)
	assert.Equal(t, 2, lock.Acquired())
}

func TestTaskTracker_CleanupOnceSkipsWhenLocked(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	lock := mocks.NewMockLock()
	lock.Busy = true
	tracker := NewTaskTracker(TaskTrackerConfig{Store: mocks.NewMockTaskStore(), Now: clock.Now, Lock: lock})

	old, err := tracker.Start(ctx)
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)

	tracker.cleanupOnce(ctx, time.Minute, DefaultTaskMaxAge)

	got, _ := tracker.Get(ctx, old.ID)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status, "another instance owns the cleanup")
}
