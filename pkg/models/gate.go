package models

import "time"

// GateStatus is the Quality Gate Record's lifecycle state. Transitions are
// monotonic through the directed graph in spec.md §4.4:
//
//	NEW -> APPROVED | CLARIFICATION_NEEDED | BLOCKED
//	CLARIFICATION_NEEDED -> APPROVED | BLOCKED | EXPIRED
//	terminal: APPROVED, REJECTED, EXPIRED
type GateStatus string

const (
	GateStatusNew                  GateStatus = "NEW"
	GateStatusApproved             GateStatus = "APPROVED"
	GateStatusRejected             GateStatus = "REJECTED"
	GateStatusClarificationNeeded  GateStatus = "CLARIFICATION_NEEDED"
	GateStatusExpired              GateStatus = "EXPIRED"
	GateStatusBlocked              GateStatus = "BLOCKED"
)

// RiskLevel classifies how severe a blocked/clarification verdict is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// terminalGateStatuses are statuses from which no further transition is
// permitted.
var terminalGateStatuses = map[GateStatus]bool{
	GateStatusApproved: true,
	GateStatusRejected: true,
	GateStatusExpired:  true,
}

// gateTransitions enumerates the permitted directed edges of the gate state
// machine. A transition not present here is rejected by QualityGate.Transition.
var gateTransitions = map[GateStatus]map[GateStatus]bool{
	GateStatusNew: {
		GateStatusApproved:            true,
		GateStatusClarificationNeeded: true,
		GateStatusBlocked:             true,
	},
	GateStatusClarificationNeeded: {
		GateStatusApproved: true,
		GateStatusBlocked:  true,
		GateStatusExpired:  true,
	},
}

// IsTerminal reports whether status is a terminal state.
func (s GateStatus) IsTerminal() bool { return terminalGateStatuses[s] }

// CanTransition reports whether moving from s to next is a legal edge.
func (s GateStatus) CanTransition(next GateStatus) bool {
	edges, ok := gateTransitions[s]
	return ok && edges[next]
}

// QualityGate is the Validator's persisted verdict for a case.
type QualityGate struct {
	ID             string         `json:"id" db:"id"`
	CaseID         string         `json:"case_id" db:"case_id"`
	CaseNumber     string         `json:"case_number" db:"case_number"`
	Status         GateStatus     `json:"status" db:"status"`
	Blocked        bool           `json:"blocked" db:"blocked"`
	RiskLevel      RiskLevel      `json:"risk_level" db:"risk_level"`
	ReviewerID     string         `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewReason   string         `json:"review_reason,omitempty" db:"review_reason"`
	Decision       DecisionPayload `json:"decision" db:"-"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	ReviewedAt     *time.Time     `json:"reviewed_at,omitempty" db:"reviewed_at"`
	Version        int            `json:"version" db:"version"` // optimistic-lock token
}

// DecisionPayload is the deterministic rule-engine output backing a gate
// verdict: errors/warnings that drove the status plus recommendations.
type DecisionPayload struct {
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
	// AdjustedConfidence is the classifier confidence after the threshold
	// check lowers it (spec.md §4.4 check 4).
	AdjustedConfidence *float64 `json:"adjusted_confidence,omitempty"`
}

// Transition validates and applies a status change, returning the prior
// status for audit purposes. Callers are expected to persist the new state
// and write a matching audit entry atomically (see pkg/audit).
func (g *QualityGate) Transition(next GateStatus) (prior GateStatus, err error) {
	prior = g.Status
	if prior.IsTerminal() {
		return prior, errGateTerminal
	}
	if prior == GateStatusNew && !prior.CanTransition(next) {
		return prior, errGateIllegalTransition
	}
	if prior == GateStatusClarificationNeeded && !prior.CanTransition(next) {
		return prior, errGateIllegalTransition
	}
	if prior != GateStatusNew && prior != GateStatusClarificationNeeded {
		return prior, errGateIllegalTransition
	}
	g.Status = next
	g.Version++
	return prior, nil
}
