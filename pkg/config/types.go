// Package config loads and validates process-wide configuration: a YAML
// file plus environment variable expansion, merged with built-in defaults,
// the way the teacher's configuration system does. Config is read at
// startup. Watcher (pkg/config/watcher.go) can reload it from disk, but
// cmd/caseintake does not start one, so a running server keeps the
// config it loaded at startup.
package config

import (
	"time"

	"github.com/svcdesk/caseintake/pkg/models"
)

// Config is the fully resolved, validated, ready-to-use configuration.
type Config struct {
	configDir string

	Server        ServerConfig
	Queue         QueueConfig
	FeatureFlags  FeatureFlagConfig
	Thresholds    ThresholdConfig
	Escalation    EscalationConfig
	Clarification ClarificationConfig
	Slack         SlackConfig
	ServiceNow    ServiceNowConfig
	LLM           LLMConfig
	Embedding     EmbeddingConfig
	Retention     RetentionConfig
	Validator     ValidatorConfig
}

// ValidatorConfig configures the category-consistency check (spec.md §4.4
// check 3): categories that always require clarification, categories that
// always require an HR reviewer, and categories outside normal
// business-as-usual flow (any of which trips the Escalation Router's
// non-BAU trigger).
type ValidatorConfig struct {
	HighRiskCategories   []string `yaml:"high_risk_categories"`
	HRRequiredCategories []string `yaml:"hr_required_categories"`
	NonBAUCategories     []string `yaml:"non_bau_categories"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	HTTPPort         string        `yaml:"http_port" validate:"required"`
	RequestDeadline  time.Duration `yaml:"request_deadline"`  // dispatcher's 3s response budget
	PipelineDeadline time.Duration `yaml:"pipeline_deadline"` // overall 60s pipeline deadline
	DedupWindow      time.Duration `yaml:"dedup_window"`      // 5 minute intake dedup window
	BearerToken      string        `yaml:"-"`                 // admin-tooling auth, from env only
	Environment      string        `yaml:"environment"`       // deployment label; no component reads it
}

// QueueConfig controls task queue publish/consume behavior.
type QueueConfig struct {
	WorkerCount      int           `yaml:"worker_count" validate:"gt=0"`
	SigningKeyEnv    string        `yaml:"signing_key_env"` // empty => queue disabled, falls back in-process
	WorkerURL        string        `yaml:"worker_url"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`   // 1s
	RetryMaxAttempts int           `yaml:"retry_max_attempts" validate:"gt=0"` // 6
}

// FeatureFlagConfig drives the repository adapter's routing decision
// (spec.md §4.9).
type FeatureFlagConfig struct {
	ForceEnable  bool     `yaml:"force_enable"`
	ForceDisable bool     `yaml:"force_disable"`
	RolloutPct   int      `yaml:"rollout_pct" validate:"gte=0,lte=100"` // 0-100
	Users        []string `yaml:"users"`
	Channels     []string `yaml:"channels"`
	StrictMode   bool     `yaml:"strict_mode"` // fail-closed instead of legacy fallback on NEW-path exception
}

// ThresholdConfig unifies every numeric threshold referenced by more than
// one component, per SPEC_FULL.md §D.2.
type ThresholdConfig struct {
	ClassificationConfidence float64 `yaml:"classification_confidence" validate:"gte=0,lte=1"` // default 0.7
	EscalationBIScore        float64 `yaml:"escalation_bi_score" validate:"gte=0,lte=1"`       // default 0.6, read by the escalation router only
}

// EscalationConfig holds the channel routing table and the default
// escalation channel.
type EscalationConfig struct {
	DefaultChannelID string               `yaml:"default_channel_id"`
	Rules            []models.ChannelRule `yaml:"rules"`
	DedupWindow      time.Duration        `yaml:"dedup_window"` // 24h
}

// ClarificationConfig holds session lifecycle tunables, overridable per
// project/client.
type ClarificationConfig struct {
	DefaultTTL       time.Duration            `yaml:"default_ttl"`
	ReminderLeadTime time.Duration            `yaml:"reminder_lead_time"`
	MaxReminders     int                      `yaml:"max_reminders" validate:"gte=0"`
	SweepInterval    time.Duration            `yaml:"sweep_interval"` // 15 minutes
	PerClientTTL     map[string]time.Duration `yaml:"per_client_ttl"`
}

// SlackConfig holds Slack API credentials and routing defaults.
type SlackConfig struct {
	TokenEnv            string `yaml:"token_env"`
	EscalationChannelID string `yaml:"escalation_channel_id"`
	SigningSecretEnv    string `yaml:"signing_secret_env"`
}

// ServiceNowConfig holds ServiceNow API credentials.
type ServiceNowConfig struct {
	BaseURL       string `yaml:"base_url"`
	BearerEnv     string `yaml:"bearer_env"`
	HMACSecretEnv string `yaml:"hmac_secret_env"`
}

// LLMConfig holds LLM provider settings for the classification pipeline.
type LLMConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds muscle-memory embedding lookup settings.
type EmbeddingConfig struct {
	Model             string  `yaml:"model"` // default vendor small-embedding, 1536 dims
	TopK              int     `yaml:"top_k" validate:"gt=0"` // default 3
	MaxDistance       float64 `yaml:"max_distance" validate:"gte=0"`       // default 0.5
	MinQuality        float64 `yaml:"min_quality" validate:"gte=0,lte=1"`        // default 0.7
	DuplicateDistance float64 `yaml:"duplicate_distance"` // default 0.05
	SimilarityCeiling float64 `yaml:"similarity_ceiling"` // default 0.95, invariant 6
}

// RetentionConfig controls stuck-case monitor thresholds.
type RetentionConfig struct {
	WarningAfter  time.Duration `yaml:"warning_after"`  // 4h
	CriticalAfter time.Duration `yaml:"critical_after"` // 8h
	AlertAfter    time.Duration `yaml:"alert_after"`    // 24h
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ConfigDir returns the directory this configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }
