// Package domain contains the core types of the orchestration pipeline.
package domain

import "time"

// TaskStatus represents the lifecycle state of a single task.
type TaskStatus string

const (
	// StatusPending indicates the task is waiting to be dispatched.
	StatusPending TaskStatus = "pending"
	// StatusInProgress indicates the task is currently executing.
	StatusInProgress TaskStatus = "in_progress"
	// StatusCompleted indicates the task finished successfully.
	StatusCompleted TaskStatus = "completed"
	// StatusFailed indicates the task exhausted its retry budget or hit a
	// permanent failure.
	StatusFailed TaskStatus = "failed"
)

// IsTerminal reports whether a status is terminal. Transitions are monotonic:
// a task never leaves a terminal state.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one unit of work in a batch. It is created by the caller, mutated
// only by the runner that owns it, and handed back in the BatchResult.
type Task struct {
	// ID identifies the task within its batch. Left empty, the orchestrator
	// assigns a compact fingerprint-derived ID.
	ID string
	// Kind selects the Assessor that executes the task.
	Kind string
	// Payload is the opaque input handed to the Assessor.
	Payload any
	// TTL overrides the default cache TTL for this task's result. Zero means
	// use the default.
	TTL time.Duration
	// MaxRetries overrides the default retry budget. Zero means use the
	// default; negative disables retries for this task.
	MaxRetries int

	// Fields below are owned by the runner.

	Status      TaskStatus
	Result      any
	Err         string
	Cause       error
	Fingerprint string
	CacheHit    bool
	StartTime   time.Time
	EndTime     time.Time
	RetryCount  int
}

// Duration returns the wall time between dispatch and terminal state.
func (t *Task) Duration() time.Duration {
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

// BatchStatus is the aggregate outcome of a Submit call.
type BatchStatus string

const (
	// BatchCompleted indicates every task in the batch succeeded.
	BatchCompleted BatchStatus = "completed"
	// BatchPartial indicates some tasks succeeded and some failed.
	BatchPartial BatchStatus = "partial"
	// BatchFailed indicates no task succeeded.
	BatchFailed BatchStatus = "failed"
)

// BatchResult is the complete outcome of a batch. Tasks appear in input
// order regardless of completion order.
type BatchResult struct {
	Status   BatchStatus
	Tasks    []*Task
	Metrics  MetricsSnapshot
	Duration time.Duration
}
