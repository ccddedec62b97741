package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "caseintake.yaml"), []byte(content), 0o644))
}

func TestInitializeFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Len(t, cfg.Escalation.Rules, 3)
}

func TestInitializeMergesUserOverridesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
server:
  http_port: "9090"
queue:
  worker_count: 12
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.HTTPPort)
	assert.Equal(t, 12, cfg.Queue.WorkerCount)
	// Unrelated defaults survive the merge untouched.
	assert.Equal(t, 3*time.Second, cfg.Server.RequestDeadline)
	assert.Equal(t, 1*time.Second, cfg.Queue.RetryBaseDelay)
}

func TestInitializeExpandsEnvVarsBeforeParsing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CASEINTAKE_TEST_PORT", "7070")
	writeConfigFile(t, dir, "server:\n  http_port: \"${CASEINTAKE_TEST_PORT}\"\n")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.HTTPPort)
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "server: [this is not valid: yaml")

	_, err := Initialize(context.Background(), dir)
	assert.Error(t, err)
}

func TestInitializeRejectsEscalationRuleOverrideMissingDefault(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, `
escalation:
  rules:
    - name: compliance
      category: Compliance
      channel_id: "#x"
      priority: 100
`)

	_, err := Initialize(context.Background(), dir)
	assert.Error(t, err)
}

func TestConfigDirReturnsLoadedDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ConfigDir())
}
