package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/svcdesk/caseintake/pkg/config"
	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
)

// Worker is a single polling worker claiming and executing tasks from the
// shared tasks table, grounded on the teacher's FOR UPDATE SKIP LOCKED
// claim pattern adapted from session claiming to task claiming.
type Worker struct {
	id       string
	podID    string
	db       *sqlx.DB
	cfg      config.QueueConfig
	executor Executor
	stopCh   chan struct{}
	wakeCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.RWMutex
	status         WorkerStatus
	currentTaskID  string
	tasksProcessed int
	lastActivity   time.Time
}

// NewWorker creates a poller bound to the shared task queue table.
func NewWorker(id, podID string, db *sqlx.DB, cfg config.QueueConfig, executor Executor) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		db:           db,
		cfg:          cfg,
		executor:     executor,
		stopCh:       make(chan struct{}),
		wakeCh:       make(chan struct{}, 1),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Wake nudges the worker to poll immediately instead of waiting out its
// jittered interval, used by ConsumeHandler on a signed notification.
func (w *Worker) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish its current task.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health reports this worker's current activity.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:             w.id,
		Status:         string(w.status),
		CurrentTaskID:  w.currentTaskID,
		TasksProcessed: w.tasksProcessed,
		LastActivity:   w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoTasksAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error claiming task", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-w.wakeCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims one task and executes it to completion.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	task, err := w.claimNextTask(ctx)
	if err != nil {
		return err
	}

	log := slog.With("task_id", task.ID, "case_id", task.CaseID, "stage", task.Stage, "worker_id", w.id)
	log.Info("task claimed")

	w.setStatus(WorkerStatusWorking, task.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	taskCtx, cancel := context.WithTimeout(ctx, w.stageTimeout())
	defer cancel()

	heartbeatCtx, cancelHeartbeat := context.WithCancel(taskCtx)
	go w.runHeartbeat(heartbeatCtx, task.ID)

	execErr := w.executor.Execute(taskCtx, task)
	cancelHeartbeat()

	if execErr == nil {
		if err := w.completeTask(context.Background(), task.ID); err != nil {
			log.Error("failed to mark task completed", "error", err)
			return err
		}
		w.bumpProcessed()
		log.Info("task completed")
		return nil
	}

	if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		execErr = caseerrors.Timeout("stage exceeded deadline", execErr)
	}

	if err := w.failTask(context.Background(), task, execErr); err != nil {
		log.Error("failed to record task failure", "error", err)
		return err
	}
	w.bumpProcessed()
	log.Warn("task failed", "error", execErr)
	return nil
}

func (w *Worker) bumpProcessed() {
	w.mu.Lock()
	w.tasksProcessed++
	w.mu.Unlock()
}

// stageTimeout bounds a single task execution at 90s. It is the only
// deadline applied to a pipeline run: config.ServerConfig.PipelineDeadline
// is not read by the worker or the executor.
func (w *Worker) stageTimeout() time.Duration {
	return 90 * time.Second
}

// claimNextTask atomically claims the oldest available pending task using
// FOR UPDATE SKIP LOCKED, mirroring the teacher's session-claiming pattern.
func (w *Worker) claimNextTask(ctx context.Context) (*Task, error) {
	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var task Task
	err = tx.GetContext(ctx, &task, `
		SELECT id, case_id, case_number, stage, payload, status, attempts, max_attempts,
		       available_at, claimed_by, claimed_at, last_heartbeat_at, completed_at, last_error, created_at
		FROM tasks
		WHERE status = $1 AND available_at <= now()
		ORDER BY available_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, StatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoTasksAvailable
		}
		return nil, fmt.Errorf("failed to query pending task: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET status = $1, claimed_by = $2, claimed_at = $3, last_heartbeat_at = $3
		WHERE id = $4
	`, StatusClaimed, w.podID+"/"+w.id, now, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	task.Status = StatusClaimed
	return &task, nil
}

func (w *Worker) runHeartbeat(ctx context.Context, taskID string) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.db.ExecContext(ctx,
				`UPDATE tasks SET last_heartbeat_at = $1 WHERE id = $2 AND status = $3`,
				time.Now(), taskID, StatusClaimed); err != nil {
				slog.Warn("heartbeat update failed", "task_id", taskID, "error", err)
			}
		}
	}
}

func (w *Worker) completeTask(ctx context.Context, taskID string) error {
	_, err := w.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, completed_at = $2 WHERE id = $3`,
		StatusCompleted, time.Now(), taskID)
	return err
}

// failTask applies the exponential-backoff-with-jitter retry policy
// (base 1s, cap per config.QueueConfig.RetryMaxAttempts) per spec.md §4.2.
// Non-retryable errors (per pkg/errors.Retryable) dead-letter immediately.
func (w *Worker) failTask(ctx context.Context, task *Task, execErr error) error {
	attempts := task.Attempts + 1
	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = w.cfg.RetryMaxAttempts
	}

	if !caseerrors.Retryable(execErr) || attempts >= maxAttempts {
		_, err := w.db.ExecContext(ctx,
			`UPDATE tasks SET status = $1, attempts = $2, last_error = $3, completed_at = $4 WHERE id = $5`,
			StatusDeadLetter, attempts, execErr.Error(), time.Now(), task.ID)
		return err
	}

	delay := backoffDelay(w.cfg.RetryBaseDelay, attempts)
	_, err := w.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, attempts = $2, last_error = $3, available_at = $4, claimed_by = '' WHERE id = $5`,
		StatusPending, attempts, execErr.Error(), time.Now().Add(delay), task.ID)
	return err
}

// backoffDelay computes base * 2^(attempt-1) and adds up to 20% jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	exp := base
	for i := 1; i < attempt; i++ {
		exp *= 2
		if exp > 5*time.Minute {
			exp = 5 * time.Minute
			break
		}
	}
	jitter := time.Duration(rand.Int64N(int64(exp) / 5))
	return exp + jitter
}

func (w *Worker) pollInterval() time.Duration {
	base := 500 * time.Millisecond
	jitter := time.Duration(rand.Int64N(int64(base)))
	return base + jitter
}

func (w *Worker) setStatus(status WorkerStatus, taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentTaskID = taskID
	w.lastActivity = time.Now()
}

// NewTaskID generates a new task identifier.
func NewTaskID() string { return uuid.NewString() }
