package models

import "time"

// EscalationStatus is the Escalation's lifecycle state.
type EscalationStatus string

const (
	EscalationStatusPending      EscalationStatus = "PENDING"
	EscalationStatusPosted       EscalationStatus = "POSTED"
	EscalationStatusAcknowledged EscalationStatus = "ACKNOWLEDGED"
	EscalationStatusCancelled    EscalationStatus = "CANCELLED"
)

// IsActive reports whether the status counts toward the "at most one
// non-terminal escalation per case number" invariant. The invariant has no
// time window: an active escalation counts however old it is.
func (s EscalationStatus) IsActive() bool {
	return s == EscalationStatusPending || s == EscalationStatusPosted
}

// Escalation is a routed, deduplicated notification to a designated Slack
// channel.
type Escalation struct {
	ID             string           `json:"id" db:"id"`
	CaseNumber     string           `json:"case_number" db:"case_number"`
	Triggers       []string         `json:"triggers" db:"-"`
	BIScore        float64          `json:"bi_score" db:"bi_score"`
	ChannelID      string           `json:"channel_id" db:"channel_id"`
	RuleName       string           `json:"rule_name" db:"rule_name"`
	Reason         string           `json:"reason" db:"reason"`
	MessageTS      string           `json:"message_ts,omitempty" db:"message_ts"`
	Status         EscalationStatus `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	AcknowledgedAt *time.Time       `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	AcknowledgedBy string           `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
}

// ChannelRule is one ordered rule in the Escalation Router's routing table.
// Predicates are optional; the first rule (by descending Priority) whose
// predicates all match wins. A default Client:"*" rule must always exist —
// checked by pkg/config validation at startup, which does not check its
// priority.
type ChannelRule struct {
	Name            string `yaml:"name"`
	Client          string `yaml:"client,omitempty"`           // "*" matches any
	Category        string `yaml:"category,omitempty"`         // "" matches any
	AssignmentGroup string `yaml:"assignment_group,omitempty"` // "" matches any
	ChannelID       string `yaml:"channel_id"`
	Priority        int    `yaml:"priority"`
}

// Matches reports whether the rule's predicates all match the given case
// attributes. An empty/"*" predicate matches everything.
func (r ChannelRule) Matches(client, category, assignmentGroup string) bool {
	if r.Client != "" && r.Client != "*" && r.Client != client {
		return false
	}
	if r.Category != "" && r.Category != category {
		return false
	}
	if r.AssignmentGroup != "" && r.AssignmentGroup != assignmentGroup {
		return false
	}
	return true
}

// IsDefault reports whether this is the unconditional client="*" catch-all
// rule — the only rule allowed to have every predicate empty.
func (r ChannelRule) IsDefault() bool {
	return r.Client == "*" && r.Category == "" && r.AssignmentGroup == ""
}
