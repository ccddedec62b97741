// Package queue implements the Task Queue Adapter: a durable, at-least-once
// job store for pipeline runs, clarification reminders, and escalation
// retries, with an optional signed-HTTP push path and an in-process
// fallback when no signing key is configured (spec.md §4.2).
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Status is a Task's position in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
)

// Sentinel errors surfaced by the polling path.
var (
	ErrNoTasksAvailable = errors.New("no tasks available")
	ErrAtCapacity       = errors.New("at capacity")
)

// Task is one unit of queued work. Idempotency is keyed on {CaseID, Stage};
// the repository layer enforces at most one in-flight task per key, so
// executors must not attempt their own application-level dedup.
type Task struct {
	ID              string          `db:"id" json:"id"`
	CaseID          string          `db:"case_id" json:"case_id"`
	CaseNumber      string          `db:"case_number" json:"case_number"`
	Stage           string          `db:"stage" json:"stage"`
	Payload         json.RawMessage `db:"payload" json:"payload"`
	Status          Status          `db:"status" json:"status"`
	Attempts        int             `db:"attempts" json:"attempts"`
	MaxAttempts     int             `db:"max_attempts" json:"max_attempts"`
	AvailableAt     time.Time       `db:"available_at" json:"available_at"`
	ClaimedBy       string          `db:"claimed_by" json:"claimed_by"`
	ClaimedAt       *time.Time      `db:"claimed_at" json:"claimed_at,omitempty"`
	LastHeartbeatAt *time.Time      `db:"last_heartbeat_at" json:"last_heartbeat_at,omitempty"`
	CompletedAt     *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	LastError       string          `db:"last_error" json:"last_error"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Executor runs a single task to completion. A returned error that is
// errors.Retryable (pkg/errors) is retried with backoff; any other error
// dead-letters the task immediately so the stuck-case monitor can surface it.
type Executor interface {
	Execute(ctx context.Context, task *Task) error
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task *Task) error

func (f ExecutorFunc) Execute(ctx context.Context, task *Task) error { return f(ctx, task) }

// WorkerStatus is a Worker's current activity.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth reports a single worker's activity for the pool health view.
type WorkerHealth struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	CurrentTaskID  string    `json:"current_task_id,omitempty"`
	TasksProcessed int       `json:"tasks_processed"`
	LastActivity   time.Time `json:"last_activity"`
}

// PoolHealth reports aggregate worker pool health.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}
