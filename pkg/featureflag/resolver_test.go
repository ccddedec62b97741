package featureflag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/svcdesk/caseintake/pkg/config"
)

func TestResolveForceDisableWinsOverEverything(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{
		ForceDisable: true,
		ForceEnable:  true,
		RolloutPct:   100,
		Users:        []string{"alice"},
	})
	assert.Equal(t, PathLegacy, r.Resolve("alice", ""))
}

func TestResolveForceEnableWinsOverRollout(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{ForceEnable: true, RolloutPct: 0})
	assert.Equal(t, PathNew, r.Resolve("anyone", ""))
}

func TestResolveAllowlistWinsOverRollout(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{RolloutPct: 0, Users: []string{"alice"}})
	assert.Equal(t, PathNew, r.Resolve("alice", ""))
	assert.Equal(t, PathLegacy, r.Resolve("bob", ""))
}

func TestResolveChannelAllowlist(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{RolloutPct: 0, Channels: []string{"C123"}})
	assert.Equal(t, PathNew, r.Resolve("bob", "C123"))
}

func TestResolveRolloutZeroAlwaysLegacy(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{RolloutPct: 0})
	for _, id := range []string{"a", "b", "c", "case-1", "case-2"} {
		assert.Equal(t, PathLegacy, r.Resolve(id, ""))
	}
}

func TestResolveRolloutHundredAlwaysNew(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{RolloutPct: 100})
	for _, id := range []string{"a", "b", "c", "case-1", "case-2"} {
		assert.Equal(t, PathNew, r.Resolve(id, ""))
	}
}

func TestResolveIsDeterministicForSameCaller(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{RolloutPct: 50})
	first := r.Resolve("stable-caller-id", "")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, r.Resolve("stable-caller-id", ""))
	}
}

func TestResolveDistributesAcrossBothPaths(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{RolloutPct: 50})
	seenNew, seenLegacy := false, false
	for i := 0; i < 500; i++ {
		id := assertID(i)
		if r.Resolve(id, "") == PathNew {
			seenNew = true
		} else {
			seenLegacy = true
		}
	}
	assert.True(t, seenNew)
	assert.True(t, seenLegacy)
}

func TestStrictModeReflectsConfig(t *testing.T) {
	r := NewResolver(config.FeatureFlagConfig{StrictMode: true})
	assert.True(t, r.StrictMode())
}

func assertID(i int) string {
	return "caller-" + string(rune('a'+i%26)) + string(rune('0'+i%10))
}
