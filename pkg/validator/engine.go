package validator

import (
	"fmt"

	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/models"
)

// Engine runs the five ordered checks of spec.md §4.4 against a
// classification result and decides the quality gate's verdict.
type Engine struct {
	thresholds config.ThresholdConfig
	categories config.ValidatorConfig
}

func NewEngine(thresholds config.ThresholdConfig, categories config.ValidatorConfig) *Engine {
	return &Engine{thresholds: thresholds, categories: categories}
}

// Decide runs the rule checks in order and returns the target status plus
// the decision payload (errors/warnings/recommendations/adjusted
// confidence) to persist alongside it. Decide never returns
// GateStatusBlocked — a BLOCKED verdict only arises from a classification
// stage that failed to parse twice, which the caller handles before ever
// reaching the rule engine.
func (e *Engine) Decide(result *models.ClassificationResult) (models.GateStatus, models.DecisionPayload) {
	var decision models.DecisionPayload
	needsClarification := false

	// Check 1: business-intelligence consistency.
	bi := result.BusinessIntelligence
	if bi.ComplianceImpact.Flag && result.RecordType.Type != models.RecordTypeIncident {
		decision.Warnings = append(decision.Warnings,
			"compliance impact flagged but record type is not Incident")
		decision.Recommendations = append(decision.Recommendations,
			"review record type against the flagged compliance impact")
		needsClarification = true
	}
	if e.isNonBAU(result.Category) {
		decision.Warnings = append(decision.Warnings,
			fmt.Sprintf("category %q is outside business-as-usual flow", result.Category))
		decision.Recommendations = append(decision.Recommendations, "route through the escalation channel")
		needsClarification = true
	}
	if bi.ExecutiveVisibility.Flag {
		decision.Warnings = append(decision.Warnings, "executive visibility flagged, requires human review")
		decision.Recommendations = append(decision.Recommendations, "assign a reviewer before approving")
		needsClarification = true
	}

	// Check 2: record-type consistency.
	if bi.SystemicIssue.Flag && result.RecordType.Type != models.RecordTypeProblem {
		decision.Warnings = append(decision.Warnings,
			"systemic issue flagged but record type is not Problem")
		decision.Recommendations = append(decision.Recommendations,
			"consider reclassifying as a Problem record")
		needsClarification = true
	}

	// Check 3: category consistency against configured HR-required /
	// high-risk sets.
	if contains(e.categories.HRRequiredCategories, result.Category) {
		decision.Warnings = append(decision.Warnings, fmt.Sprintf("category %q requires HR review", result.Category))
		needsClarification = true
	}
	if contains(e.categories.HighRiskCategories, result.Category) {
		decision.Warnings = append(decision.Warnings, fmt.Sprintf("category %q is high-risk", result.Category))
		needsClarification = true
	}

	// Check 4: confidence threshold.
	threshold := e.thresholds.ClassificationConfidence
	if threshold <= 0 {
		threshold = 0.7
	}
	if result.Confidence != nil && *result.Confidence < threshold {
		adjusted := *result.Confidence
		decision.AdjustedConfidence = &adjusted
		decision.Warnings = append(decision.Warnings,
			fmt.Sprintf("classification confidence %.2f below threshold %.2f", adjusted, threshold))
		needsClarification = true
	}

	// Check 5: recommendations are collected above as each check matches;
	// nothing further to add once the prior checks have run.

	if needsClarification {
		return models.GateStatusClarificationNeeded, decision
	}
	return models.GateStatusApproved, decision
}

func (e *Engine) isNonBAU(category string) bool {
	return contains(e.categories.NonBAUCategories, category)
}

// IsNonBAU reports whether category falls outside business-as-usual flow,
// exported so the Escalation Router's "non_bau_category" trigger (spec.md
// §4.6) can reuse the same configured category set instead of duplicating it.
func (e *Engine) IsNonBAU(category string) bool {
	return e.isNonBAU(category)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
