package config

import (
	"fmt"

	playground "github.com/go-playground/validator/v10"

	"github.com/svcdesk/caseintake/pkg/models"
)

var structValidator = playground.New()

// validate enforces structural invariants that defaults.go and loader.go
// alone cannot guarantee once YAML overrides are merged in. Field-level
// bounds (ranges, required strings) run through go-playground/validator's
// struct tags first; the cross-field and table-shape invariants a tag
// can't express follow.
func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return NewValidationError("config", err.Error())
	}
	if cfg.FeatureFlags.ForceEnable && cfg.FeatureFlags.ForceDisable {
		return NewValidationError("feature_flags", "force_enable and force_disable are mutually exclusive")
	}
	if err := validateEscalationRules(cfg.Escalation.Rules); err != nil {
		return err
	}
	if cfg.Clarification.ReminderLeadTime >= cfg.Clarification.DefaultTTL {
		return NewValidationError("clarification.reminder_lead_time", "must be shorter than default_ttl")
	}
	if cfg.Retention.WarningAfter >= cfg.Retention.CriticalAfter || cfg.Retention.CriticalAfter >= cfg.Retention.AlertAfter {
		return NewValidationError("retention", "warning_after < critical_after < alert_after must hold")
	}
	return nil
}

// validateEscalationRules requires exactly the invariant spec.md §4.6 names:
// a client="*" rule must exist to serve as the unconditional fallback route.
func validateEscalationRules(rules []models.ChannelRule) error {
	for _, r := range rules {
		if r.IsDefault() {
			return nil
		}
	}
	return fmt.Errorf("%w", ErrNoDefaultEscalationRule)
}
