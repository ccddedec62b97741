package models

// RecordType is the record-type suggestion emitted by the categorization stage.
type RecordType string

const (
	RecordTypeProblem  RecordType = "Problem"
	RecordTypeIncident RecordType = "Incident"
	RecordTypeChange   RecordType = "Change"
	RecordTypeCase     RecordType = "Case"
)

// Urgency is the classifier's urgency verdict.
type Urgency string

const (
	UrgencyLow      Urgency = "Low"
	UrgencyMedium   Urgency = "Medium"
	UrgencyHigh     Urgency = "High"
	UrgencyCritical Urgency = "Critical"
)

// Tone is the narrative stage's confidence posture.
type Tone string

const (
	ToneConfident Tone = "confident"
	ToneCautious  Tone = "cautious"
	ToneEscalate  Tone = "escalate"
)

// TechnicalEntities groups entities the categorization stage extracted from
// the case text.
type TechnicalEntities struct {
	IPAddresses []string `json:"ip_addresses,omitempty"`
	Systems     []string `json:"systems,omitempty"`
	Users       []string `json:"users,omitempty"`
	Software    []string `json:"software,omitempty"`
	ErrorCodes  []string `json:"error_codes,omitempty"`
}

// RecordTypeSuggestion carries the classifier's record-type recommendation.
type RecordTypeSuggestion struct {
	Type      RecordType `json:"type"`
	IsMajor   bool       `json:"is_major"`
	Reasoning string     `json:"reasoning,omitempty"`
}

// Narrative is the output of the narrative stage.
type Narrative struct {
	QuickSummary       string   `json:"quick_summary"`
	ImmediateNextSteps []string `json:"immediate_next_steps"` // 1-5 concrete, ordered actions
	Tone               Tone     `json:"tone"`
}

// FlaggedBool is a boolean business-intelligence flag. Invariant: if Flag is
// true, Reason is non-empty; flags with no supporting evidence are simply
// left false rather than carrying a hollow reason.
type FlaggedBool struct {
	Flag   bool   `json:"flag"`
	Reason string `json:"reason,omitempty"`
}

// BusinessIntelligence is the output of the business-intelligence stage.
// All flags are evidence-only — the stage must not speculate.
type BusinessIntelligence struct {
	ProjectScopeDetected  FlaggedBool `json:"project_scope_detected"`
	ExecutiveVisibility   FlaggedBool `json:"executive_visibility"`
	ComplianceImpact      FlaggedBool `json:"compliance_impact"`
	FinancialImpact       FlaggedBool `json:"financial_impact"`
	SystemicIssue         FlaggedBool `json:"systemic_issue"`
	OutsideServiceHours   FlaggedBool `json:"outside_service_hours"`
}

// Score returns a composite BI score in [0,1]: the fraction of flags raised,
// weighted slightly toward compliance/executive since those drive
// escalation and policy decisions most directly. The Escalation Router
// compares it against the unified threshold (SPEC_FULL.md §D.2); the
// Validator's checks use the individual flags, not this score.
func (bi BusinessIntelligence) Score() float64 {
	const (
		wCompliance = 0.30
		wExecutive  = 0.20
		wFinancial  = 0.20
		wSystemic   = 0.20
		wProject    = 0.10
	)
	var score float64
	if bi.ComplianceImpact.Flag {
		score += wCompliance
	}
	if bi.ExecutiveVisibility.Flag {
		score += wExecutive
	}
	if bi.FinancialImpact.Flag {
		score += wFinancial
	}
	if bi.SystemicIssue.Flag {
		score += wSystemic
	}
	if bi.ProjectScopeDetected.Flag {
		score += wProject
	}
	return score
}

// AnyFlagged reports whether any BI flag is raised (used by the Escalation
// Router's trigger check alongside the composite-score threshold).
func (bi BusinessIntelligence) AnyFlagged() bool {
	return bi.ProjectScopeDetected.Flag || bi.ExecutiveVisibility.Flag ||
		bi.ComplianceImpact.Flag || bi.FinancialImpact.Flag ||
		bi.SystemicIssue.Flag || bi.OutsideServiceHours.Flag
}

// ClassificationResult is the fully assembled, three-stage classification
// verdict for a case. Every flagged boolean either carries a reason or is
// suppressed; Confidence, if present, is finite and within [0,1] — enforced
// by Validate.
type ClassificationResult struct {
	Category              string                `json:"category"` // required
	Subcategory           string                `json:"subcategory,omitempty"`
	IncidentCategory       string               `json:"incident_category,omitempty"`
	IncidentSubcategory    string               `json:"incident_subcategory,omitempty"`
	Confidence             *float64             `json:"confidence,omitempty"`
	Keywords               []string             `json:"keywords,omitempty"`
	TechnicalEntities       TechnicalEntities    `json:"technical_entities"`
	Urgency                 Urgency              `json:"urgency"`
	RecordType              RecordTypeSuggestion `json:"record_type"`
	ServiceOffering         string               `json:"service_offering,omitempty"`
	ApplicationService      string               `json:"application_service,omitempty"`
	Narrative               Narrative            `json:"narrative"`
	BusinessIntelligence    BusinessIntelligence `json:"business_intelligence"`

	// Usage carries token accounting for the three LLM calls that produced
	// this result, for audit/metrics.
	Usage StageUsage `json:"usage"`
}

// StageUsage aggregates LLM token usage across pipeline stages.
type StageUsage struct {
	CategorizationPromptTokens int `json:"categorization_prompt_tokens"`
	CategorizationOutputTokens int `json:"categorization_output_tokens"`
	NarrativePromptTokens      int `json:"narrative_prompt_tokens"`
	NarrativeOutputTokens      int `json:"narrative_output_tokens"`
	BIPromptTokens             int `json:"bi_prompt_tokens"`
	BIOutputTokens             int `json:"bi_output_tokens"`
}

// Validate enforces the Classification Result invariants from spec.md §3.
func (r *ClassificationResult) Validate() error {
	if r.Category == "" {
		return errMissingCategory
	}
	if r.Confidence != nil {
		c := *r.Confidence
		if c < 0 || c > 1 || isNaNOrInf(c) {
			return errConfidenceOutOfRange
		}
	}
	if n := len(r.Narrative.ImmediateNextSteps); n > 0 && n > 5 {
		return errTooManyNextSteps
	}
	return nil
}

func isNaNOrInf(f float64) bool {
	return f != f || f > 1e308 || f < -1e308
}
