package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/svcdesk/caseintake/pkg/featureflag"
)

// defaultFlagCacheTTL bounds how long a resolved routing decision is
// reused for the same caller before Resolve is asked again, the same
// read-through-with-TTL discipline spec.md §5 requires of caches.
const defaultFlagCacheTTL = 30 * time.Second

// FlagCache memoizes featureflag.Resolver decisions in Redis so a hot
// caller doesn't recompute (and, once dynamic config lands, doesn't risk
// flapping) its routing decision on every call within the TTL window.
// A nil or unreachable Redis client degrades to calling the resolver
// directly — the cache is a speed-up, never a dependency.
type FlagCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewFlagCache builds a cache around an existing Redis client. Pass nil to
// disable caching (Resolve always falls through to the resolver).
func NewFlagCache(rdb *redis.Client) *FlagCache {
	return &FlagCache{rdb: rdb, ttl: defaultFlagCacheTTL, log: slog.With("component", "repository.flagcache")}
}

// Resolve returns the cached path for (callerID, channelID) if present and
// fresh, otherwise resolves via r and caches the result.
func (c *FlagCache) Resolve(ctx context.Context, r *featureflag.Resolver, callerID, channelID string) featureflag.Path {
	if c == nil || c.rdb == nil {
		return r.Resolve(callerID, channelID)
	}

	key := "caseintake:flag:" + callerID + ":" + channelID
	if cached, err := c.rdb.Get(ctx, key).Result(); err == nil {
		return featureflag.Path(cached)
	} else if err != redis.Nil {
		c.log.Warn("flag cache read failed, resolving directly", "error", err)
	}

	path := r.Resolve(callerID, channelID)
	if err := c.rdb.Set(ctx, key, string(path), c.ttl).Err(); err != nil {
		c.log.Warn("flag cache write failed", "error", err)
	}
	return path
}
