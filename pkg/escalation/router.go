// Package escalation routes BI-flagged, non-BAU, or escalate-toned cases
// to a Slack channel per the Escalation Router's ordered rule table
// (spec.md §4.6), deduplicating active escalations per case number.
package escalation

import (
	"sort"
	"strings"

	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/models"
)

// Router decides whether a classification result should escalate and, if
// so, which channel it routes to.
type Router struct {
	cfg    config.EscalationConfig
	biScoreThreshold float64
}

func NewRouter(cfg config.EscalationConfig, biScoreThreshold float64) *Router {
	return &Router{cfg: cfg, biScoreThreshold: biScoreThreshold}
}

// CaseAttributes carries the predicates ChannelRule matches against.
type CaseAttributes struct {
	Client          string
	Category        string
	AssignmentGroup string
}

// Evaluate reports whether the result triggers escalation and, if so, the
// fired trigger names, BI score, and resolved routing rule.
func (r *Router) Evaluate(result *models.ClassificationResult, isNonBAU bool, attrs CaseAttributes) (bool, []string, float64, models.ChannelRule) {
	score := result.BusinessIntelligence.Score()
	threshold := r.biScoreThreshold
	if threshold <= 0 {
		threshold = 0.6
	}

	var triggers []string
	if result.BusinessIntelligence.AnyFlagged() {
		triggers = append(triggers, flaggedTriggers(result.BusinessIntelligence)...)
	}
	if score >= threshold {
		triggers = append(triggers, "bi_score_threshold")
	}
	if isNonBAU {
		triggers = append(triggers, "non_bau_category")
	}
	if result.Narrative.Tone == models.ToneEscalate {
		triggers = append(triggers, "narrative_escalate_tone")
	}

	if len(triggers) == 0 {
		return false, nil, score, models.ChannelRule{}
	}
	return true, triggers, score, r.resolveChannel(attrs)
}

func flaggedTriggers(bi models.BusinessIntelligence) []string {
	var out []string
	if bi.ComplianceImpact.Flag {
		out = append(out, "compliance_impact")
	}
	if bi.ExecutiveVisibility.Flag {
		out = append(out, "executive_visibility")
	}
	if bi.FinancialImpact.Flag {
		out = append(out, "financial_impact")
	}
	if bi.SystemicIssue.Flag {
		out = append(out, "systemic_issue")
	}
	if bi.ProjectScopeDetected.Flag {
		out = append(out, "project_scope_detected")
	}
	return out
}

// resolveChannel picks the highest-priority rule whose predicates match,
// falling back to the configured DefaultChannelID if no rule (including
// the required client="*" catch-all) matches the given attributes — which
// should not happen once config validation has run at startup.
func (r *Router) resolveChannel(attrs CaseAttributes) models.ChannelRule {
	rules := make([]models.ChannelRule, len(r.cfg.Rules))
	copy(rules, r.cfg.Rules)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })

	for _, rule := range rules {
		if rule.Matches(attrs.Client, attrs.Category, attrs.AssignmentGroup) {
			return rule
		}
	}
	return models.ChannelRule{Name: "fallback", ChannelID: r.cfg.DefaultChannelID}
}

// Reason renders a human-readable summary of why a case escalated.
func Reason(triggers []string) string {
	return "escalation triggers: " + strings.Join(triggers, ", ")
}
