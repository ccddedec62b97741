package config

import (
	"time"

	"github.com/svcdesk/caseintake/pkg/models"
)

// defaultEscalationRules returns the built-in routing table: a compliance
// rule, an executive rule, and the required client="*" catch-all at the
// lowest priority.
func defaultEscalationRules() []models.ChannelRule {
	return []models.ChannelRule{
		{Name: "compliance", Category: "Compliance", ChannelID: "#sec-compliance-escalations", Priority: 100},
		{Name: "executive-office", AssignmentGroup: "Executive Office", ChannelID: "#exec-escalations", Priority: 50},
		{Name: "default", Client: "*", ChannelID: "#case-escalations", Priority: 0},
	}
}

// defaultConfig returns the built-in defaults applied before YAML overrides
// are merged on top, mirroring the teacher's "built-in + user-defined,
// user overrides built-in" merge strategy.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:         "8080",
			RequestDeadline:  3 * time.Second,
			PipelineDeadline: 60 * time.Second,
			DedupWindow:      5 * time.Minute,
			Environment:      "production",
		},
		Queue: QueueConfig{
			WorkerCount:      5,
			RetryBaseDelay:   1 * time.Second,
			RetryMaxAttempts: 6,
		},
		FeatureFlags: FeatureFlagConfig{
			RolloutPct: 0,
		},
		Thresholds: ThresholdConfig{
			ClassificationConfidence: 0.7,
			EscalationBIScore:        0.6,
		},
		Escalation: EscalationConfig{
			DedupWindow: 24 * time.Hour,
			Rules:       defaultEscalationRules(),
		},
		Clarification: ClarificationConfig{
			DefaultTTL:       4 * time.Hour,
			ReminderLeadTime: 30 * time.Minute,
			MaxReminders:     2,
			SweepInterval:    15 * time.Minute,
		},
		Slack: SlackConfig{
			TokenEnv: "SLACK_BOT_TOKEN",
		},
		ServiceNow: ServiceNowConfig{
			BearerEnv:     "SERVICENOW_BEARER_TOKEN",
			HMACSecretEnv: "SERVICENOW_HMAC_SECRET",
		},
		LLM: LLMConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Timeout:   30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:             "text-embedding-3-small",
			TopK:              3,
			MaxDistance:       0.5,
			MinQuality:        0.7,
			DuplicateDistance: 0.05,
			SimilarityCeiling: 0.95,
		},
		Retention: RetentionConfig{
			WarningAfter:  4 * time.Hour,
			CriticalAfter: 8 * time.Hour,
			AlertAfter:    24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Validator: ValidatorConfig{
			HighRiskCategories:   []string{"Security", "Data Loss"},
			HRRequiredCategories: []string{"HR", "Harassment"},
			NonBAUCategories:     []string{"Security", "Legal", "HR"},
		},
	}
}
