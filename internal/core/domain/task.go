package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerateTaskID creates a unique task identifier.
func GenerateTaskID() string {
	return uuid.New().String()
}

// TaskStatus represents the current state of an ingestion task
type TaskStatus string

const (
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	// TaskStatusNotFound is only ever returned by lookups, never stored
	TaskStatusNotFound TaskStatus = "not_found"
)

// IsTerminal reports whether no further transitions are expected.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Progress checkpoints reported by the ingestion pipeline.
const (
	ProgressStarted   = 10
	ProgressSaved     = 20
	ProgressExtracted = 40
	ProgressSummary   = 60
	ProgressEmbedded  = 80
	ProgressDone      = 100
)

// TaskNotFoundMessage is the message carried by the not_found sentinel.
const TaskNotFoundMessage = "Task not found"

// Task tracks one background ingestion run
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"task_id"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Progress is a percentage in [0, 100]
	Progress int `json:"progress"`

	// Message is a human-readable description of the current stage
	Message string `json:"message"`

	// Result is set once the task completes successfully
	Result *TaskResult `json:"result,omitempty"`

	// UpdatedAt is when the task was last modified
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskResult is the payload of a completed ingestion
type TaskResult struct {
	DocumentID  string `json:"document_id"`
	Title       string `json:"title"`
	ChunksCount int    `json:"chunks_count"`
	FileSize    int64  `json:"file_size"`
	FileType    string `json:"file_type"`
}

// NewTask creates a task in the processing state
func NewTask(id string, now time.Time) *Task {
	return &Task{
		ID:        id,
		Status:    TaskStatusProcessing,
		Progress:  0,
		Message:   "Task started",
		UpdatedAt: now,
	}
}

// NotFoundTask is the sentinel record returned for unknown ids.
func NotFoundTask(id string) *Task {
	return &Task{
		ID:      id,
		Status:  TaskStatusNotFound,
		Message: TaskNotFoundMessage,
	}
}

// ClampProgress keeps a progress value within [0, 100].
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
