package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

// orphanDetectionInterval and orphanHeartbeatThreshold bound how stale a
// claimed task's heartbeat can get before another worker reclaims it.
const (
	orphanDetectionInterval  = 30 * time.Second
	orphanHeartbeatThreshold = 2 * time.Minute
)

// orphanState tracks orphan-recovery metrics, guarded by its own mutex so
// Health() can read it without taking a pool-wide lock.
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically requeues claimed tasks whose worker
// stopped heartbeating, so a crashed pod never strands work indefinitely.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(orphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("orphan detection failed", "error", err)
			}
		}
	}
}

func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	recovered, err := RecoverOrphans(ctx, p.db, orphanHeartbeatThreshold)
	if err != nil {
		return err
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	if recovered > 0 {
		slog.Warn("recovered orphaned tasks", "count", recovered)
	}
	return nil
}

// RecoverOrphans requeues claimed tasks whose last heartbeat is older than
// threshold, incrementing their attempt count exactly as a normal failure
// would. WorkerPool's periodic orphan sweep (detectAndRecoverOrphans)
// calls it.
func RecoverOrphans(ctx context.Context, db *sqlx.DB, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)

	result, err := db.ExecContext(ctx, `
		UPDATE tasks
		SET status = CASE WHEN attempts + 1 >= max_attempts THEN $1 ELSE $2 END,
		    attempts = attempts + 1,
		    claimed_by = '',
		    last_error = 'orphaned: heartbeat stale since ' || last_heartbeat_at::text,
		    available_at = now(),
		    completed_at = CASE WHEN attempts + 1 >= max_attempts THEN now() ELSE completed_at END
		WHERE status = $3 AND last_heartbeat_at < $4
	`, StatusDeadLetter, StatusPending, StatusClaimed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to recover orphaned tasks: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(n), nil
}
