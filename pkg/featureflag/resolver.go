// Package featureflag decides, per call, whether the repository adapter
// routes to the new persistence path or the legacy one (spec.md §4.9).
// The decision is deterministic for a given caller id so a user's traffic
// doesn't flap between paths mid-rollout.
package featureflag

import (
	"hash/fnv"

	"github.com/svcdesk/caseintake/pkg/config"
)

// Path is which repository implementation a call should use.
type Path string

const (
	PathLegacy Path = "legacy"
	PathNew    Path = "new"
)

// Resolver decides legacy-vs-new routing from a FeatureFlagConfig.
type Resolver struct {
	cfg config.FeatureFlagConfig
}

// NewResolver builds a Resolver from a copy of cfg; later changes to the
// caller's config are not seen by it.
func NewResolver(cfg config.FeatureFlagConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve applies the precedence order from spec.md §4.9:
//  1. FORCE_DISABLE wins over everything.
//  2. else FORCE_ENABLE wins.
//  3. else per-user/per-channel allowlists win.
//  4. else a deterministic hash of callerID modulo 100 selects NEW iff
//     hash < rolloutPct.
func (r *Resolver) Resolve(callerID, channelID string) Path {
	cfg := r.cfg
	if cfg.ForceDisable {
		return PathLegacy
	}
	if cfg.ForceEnable {
		return PathNew
	}
	if contains(cfg.Users, callerID) || contains(cfg.Channels, channelID) {
		return PathNew
	}
	if cfg.RolloutPct <= 0 {
		return PathLegacy
	}
	if cfg.RolloutPct >= 100 {
		return PathNew
	}
	if bucket(callerID) < cfg.RolloutPct {
		return PathNew
	}
	return PathLegacy
}

// StrictMode reports whether a NEW-path exception should fail the call
// outright instead of falling back to the legacy path.
func (r *Resolver) StrictMode() bool { return r.cfg.StrictMode }

// bucket deterministically maps an id to [0, 100) using FNV-1a, the same
// non-cryptographic hash the teacher's sharding code uses for stable
// bucketing.
func bucket(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % 100)
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
