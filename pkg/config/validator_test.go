package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcdesk/caseintake/pkg/models"
)

func TestValidateRequiresDefaultEscalationRule(t *testing.T) {
	cfg := defaultConfig()
	cfg.Escalation.Rules = []models.ChannelRule{
		{Name: "compliance", Category: "Compliance", ChannelID: "#x", Priority: 100},
	}

	err := validate(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoDefaultEscalationRule))
}

func TestValidateAcceptsBuiltInDefaults(t *testing.T) {
	assert.NoError(t, validate(defaultConfig()))
}

func TestValidateRejectsMutuallyExclusiveFeatureFlags(t *testing.T) {
	cfg := defaultConfig()
	cfg.FeatureFlags.ForceEnable = true
	cfg.FeatureFlags.ForceDisable = true

	assert.Error(t, validate(cfg))
}

func TestValidateRejectsOutOfRangeRolloutPct(t *testing.T) {
	cfg := defaultConfig()
	cfg.FeatureFlags.RolloutPct = 150

	assert.Error(t, validate(cfg))
}

func TestValidateRejectsReminderLeadTimeExceedingTTL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Clarification.ReminderLeadTime = cfg.Clarification.DefaultTTL

	assert.Error(t, validate(cfg))
}

func TestValidateRejectsOutOfOrderRetentionBuckets(t *testing.T) {
	cfg := defaultConfig()
	cfg.Retention.CriticalAfter = cfg.Retention.WarningAfter

	assert.Error(t, validate(cfg))
}
