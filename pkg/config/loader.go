package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the on-disk caseintake.yaml shape. Only the fields a
// site actually wants to override need to be present — everything else
// falls back to defaultConfig() via mergo.
type yamlConfig struct {
	Server        *ServerConfig        `yaml:"server"`
	Queue         *QueueConfig         `yaml:"queue"`
	FeatureFlags  *FeatureFlagConfig   `yaml:"feature_flags"`
	Thresholds    *ThresholdConfig     `yaml:"thresholds"`
	Escalation    *EscalationConfig    `yaml:"escalation"`
	Clarification *ClarificationConfig `yaml:"clarification"`
	Slack         *SlackConfig         `yaml:"slack"`
	ServiceNow    *ServiceNowConfig    `yaml:"servicenow"`
	LLM           *LLMConfig           `yaml:"llm"`
	Embedding     *EmbeddingConfig     `yaml:"embedding"`
	Retention     *RetentionConfig     `yaml:"retention"`
}

// Initialize loads, merges, resolves env-only secrets, and validates
// configuration. Primary entry point for configuration loading.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("component", "config", "config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized",
		"escalation_rules", len(cfg.Escalation.Rules),
		"rollout_pct", cfg.FeatureFlags.RolloutPct)
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	cfg := defaultConfig()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "caseintake.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		var userCfg yamlConfig
		if err := yaml.Unmarshal(data, &userCfg); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := mergeUserConfig(cfg, &userCfg); err != nil {
			return nil, NewLoadError(path, err)
		}
	case os.IsNotExist(err):
		slog.Warn("no caseintake.yaml found, using built-in defaults only", "path", path)
	default:
		return nil, NewLoadError(path, err)
	}

	resolveSecrets(cfg)
	return cfg, nil
}

// mergeUserConfig overlays non-zero user-provided fields onto the built-in
// defaults using mergo, the same approach the teacher's loader uses for
// QueueConfig.
func mergeUserConfig(cfg *Config, user *yamlConfig) error {
	overlay := func(dst, src any) error {
		if src == nil {
			return nil
		}
		return mergo.Merge(dst, src, mergo.WithOverride)
	}
	if err := overlay(&cfg.Server, user.Server); err != nil {
		return err
	}
	if err := overlay(&cfg.Queue, user.Queue); err != nil {
		return err
	}
	if err := overlay(&cfg.FeatureFlags, user.FeatureFlags); err != nil {
		return err
	}
	if err := overlay(&cfg.Thresholds, user.Thresholds); err != nil {
		return err
	}
	if user.Escalation != nil {
		// Rules are a full override, not merged field-by-field: a site
		// replacing its routing table wants exactly what it wrote.
		if len(user.Escalation.Rules) > 0 {
			cfg.Escalation.Rules = user.Escalation.Rules
		}
		if user.Escalation.DefaultChannelID != "" {
			cfg.Escalation.DefaultChannelID = user.Escalation.DefaultChannelID
		}
		if user.Escalation.DedupWindow > 0 {
			cfg.Escalation.DedupWindow = user.Escalation.DedupWindow
		}
	}
	if err := overlay(&cfg.Clarification, user.Clarification); err != nil {
		return err
	}
	if err := overlay(&cfg.Slack, user.Slack); err != nil {
		return err
	}
	if err := overlay(&cfg.ServiceNow, user.ServiceNow); err != nil {
		return err
	}
	if err := overlay(&cfg.LLM, user.LLM); err != nil {
		return err
	}
	if err := overlay(&cfg.Embedding, user.Embedding); err != nil {
		return err
	}
	if err := overlay(&cfg.Retention, user.Retention); err != nil {
		return err
	}
	return nil
}

// resolveSecrets reads the admin bearer token from ADMIN_BEARER_TOKEN into
// the in-memory config; it never round-trips through YAML. Other *_env
// fields are read by the components that use them, not here.
func resolveSecrets(cfg *Config) {
	cfg.Server.BearerToken = os.Getenv("ADMIN_BEARER_TOKEN")
}
