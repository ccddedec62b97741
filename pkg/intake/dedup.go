// Package intake is the HTTP dispatcher: it authenticates inbound
// ServiceNow/Slack webhooks, deduplicates them, and publishes the payload
// onto the task queue for a worker to process (spec.md §4.1).
package intake

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper rejects a {source, external_id} pair seen again within its
// window. A nil or unreachable Redis client degrades to "never seen
// before" — the dispatcher favors an occasional duplicate enqueue over
// refusing traffic when the cache is down.
type Deduper struct {
	rdb    *redis.Client
	window time.Duration
	log    *slog.Logger
}

// NewDeduper builds a dedup cache around an existing Redis client. Pass nil
// to disable deduplication.
func NewDeduper(rdb *redis.Client, window time.Duration) *Deduper {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Deduper{rdb: rdb, window: window, log: slog.With("component", "intake.dedup")}
}

// Seen records (source, externalID) and reports whether it was already
// present within the window — i.e. true means "drop this request as a
// duplicate". Uses SETNX semantics so concurrent duplicates resolve to
// exactly one winner.
func (d *Deduper) Seen(ctx context.Context, source, externalID string) bool {
	if d == nil || d.rdb == nil {
		return false
	}

	key := "caseintake:dedup:" + source + ":" + externalID
	ok, err := d.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), d.window).Result()
	if err != nil {
		d.log.Warn("dedup check failed, treating request as new", "error", err)
		return false
	}
	return !ok
}
