package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/svcdesk/caseintake/pkg/config"
)

// Publisher enqueues a unit of work.
type Publisher interface {
	Publish(ctx context.Context, caseID, caseNumber, stage string, payload any) error
}

// NewPublisher selects the adapter path per spec.md §4.2: if no signing key
// env var is configured (or the env var resolves empty), the queue is
// disabled and callers get a synchronous in-process publisher instead.
func NewPublisher(cfg config.QueueConfig, db *sqlx.DB, fallback Executor) Publisher {
	if cfg.SigningKeyEnv == "" {
		slog.Info("queue disabled: no signing key configured, using in-process fallback")
		return &InProcessPublisher{executor: fallback}
	}
	key := os.Getenv(cfg.SigningKeyEnv)
	if key == "" {
		slog.Warn("queue disabled: signing key env var is set but empty", "env_var", cfg.SigningKeyEnv)
		return &InProcessPublisher{executor: fallback}
	}
	return &QueuePublisher{db: db, signingKey: []byte(key), workerURL: cfg.WorkerURL, maxAttempts: cfg.RetryMaxAttempts}
}

// InProcessPublisher executes tasks synchronously on the calling goroutine.
// Failures surface immediately to the caller, as spec.md §4.2 requires when
// the queue is disabled.
type InProcessPublisher struct {
	executor Executor
}

func (p *InProcessPublisher) Publish(ctx context.Context, caseID, caseNumber, stage string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}
	task := &Task{
		ID:         NewTaskID(),
		CaseID:     caseID,
		CaseNumber: caseNumber,
		Stage:      stage,
		Payload:    raw,
		Status:     StatusClaimed,
		CreatedAt:  time.Now(),
	}
	return p.executor.Execute(ctx, task)
}

// QueuePublisher inserts a durable task row and best-effort notifies a
// worker pod over a signed HTTP call so it polls sooner than its normal
// interval. The insert, not the notification, is the source of truth:
// a failed notification never loses the task, it just delays pickup.
type QueuePublisher struct {
	db          *sqlx.DB
	signingKey  []byte
	workerURL   string
	maxAttempts int
	httpClient  *http.Client
}

func (p *QueuePublisher) client() *http.Client {
	if p.httpClient != nil {
		return p.httpClient
	}
	return &http.Client{Timeout: 3 * time.Second}
}

func (p *QueuePublisher) Publish(ctx context.Context, caseID, caseNumber, stage string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	maxAttempts := p.maxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}

	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO tasks (id, case_id, case_number, stage, payload, status, max_attempts, available_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (case_id, stage) WHERE status IN ('pending', 'claimed') DO NOTHING
	`, id, caseID, caseNumber, stage, raw, StatusPending, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	p.notify(ctx, id, raw)
	return nil
}

// notify performs one best-effort signed POST to the worker URL. It never
// returns an error to the caller — the durable row already guarantees
// delivery via the worker's own poll loop.
func (p *QueuePublisher) notify(ctx context.Context, taskID string, payload json.RawMessage) {
	if p.workerURL == "" {
		return
	}

	sig := Sign(p.signingKey, payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.workerURL, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("failed to build queue notify request", "task_id", taskID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caseintake-Signature", sig)
	req.Header.Set("X-Caseintake-Task-Id", taskID)

	resp, err := p.client().Do(req)
	if err != nil {
		slog.Debug("queue notify failed, worker will pick up task on next poll", "task_id", taskID, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Debug("queue notify returned non-2xx, worker will pick up task on next poll",
			"task_id", taskID, "status", resp.StatusCode)
	}
}
