package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/svcdesk/caseintake/pkg/config"
)

// WorkerPool manages a fixed-size pool of polling workers plus the
// background orphan-recovery sweep, mirroring the teacher's pool
// lifecycle (Start/Stop/Health) adapted from sessions to tasks.
type WorkerPool struct {
	podID    string
	db       *sqlx.DB
	cfg      config.QueueConfig
	executor Executor
	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	orphans orphanState
}

// NewWorkerPool constructs a pool bound to the given executor and DB.
func NewWorkerPool(podID string, db *sqlx.DB, cfg config.QueueConfig, executor Executor) *WorkerPool {
	return &WorkerPool{
		podID:    podID,
		db:       db,
		cfg:      cfg,
		executor: executor,
		workers:  make([]*Worker, 0, cfg.WorkerCount),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns worker goroutines and the orphan detection loop. Safe to
// call only once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	count := p.cfg.WorkerCount
	if count <= 0 {
		count = 1
	}
	slog.Info("starting worker pool", "pod_id", p.podID, "worker_count", count)

	for i := 0; i < count; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		w := NewWorker(workerID, p.podID, p.db, p.cfg, p.executor)
		p.workers = append(p.workers, w)
		w.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()

	slog.Info("worker pool started")
	return nil
}

// Stop signals all workers and the orphan sweep to finish, waiting for
// in-flight tasks to complete.
func (p *WorkerPool) Stop() {
	slog.Info("stopping worker pool gracefully")
	for _, w := range p.workers {
		w.Stop()
	}
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("worker pool stopped gracefully")
}

// Wake nudges every worker in the pool to poll immediately.
func (p *WorkerPool) Wake() {
	for _, w := range p.workers {
		w.Wake()
	}
}

// Health reports queue depth and per-worker activity.
func (p *WorkerPool) Health() *PoolHealth {
	ctx := context.Background()

	var depth int
	errQ := p.db.GetContext(ctx, &depth,
		`SELECT count(*) FROM tasks WHERE status = $1 AND available_at <= now()`, StatusPending)
	if errQ != nil {
		slog.Error("failed to query queue depth for health check", "pod_id", p.podID, "error", errQ)
	}

	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		h := w.Health()
		stats[i] = h
		if h.Status == string(WorkerStatusWorking) {
			active++
		}
	}

	p.orphans.mu.Lock()
	lastScan := p.orphans.lastOrphanScan
	recovered := p.orphans.orphansRecovered
	p.orphans.mu.Unlock()

	dbHealthy := errQ == nil
	var dbErr string
	if !dbHealthy {
		dbErr = fmt.Sprintf("queue depth query failed: %v", errQ)
	}

	return &PoolHealth{
		IsHealthy:        len(p.workers) > 0 && dbHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbErr,
		PodID:            p.podID,
		ActiveWorkers:    active,
		TotalWorkers:     len(p.workers),
		QueueDepth:       depth,
		WorkerStats:      stats,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}
