package classification

import (
	"context"

	"github.com/svcdesk/caseintake/pkg/llm"
	"github.com/svcdesk/caseintake/pkg/models"
)

const categorizationSystemPrompt = `You are the categorization stage of a service-desk case classifier.
Given the case and its surrounding context, respond with ONLY a single JSON object, no prose, matching:
{
  "category": string (required),
  "subcategory": string,
  "incident_category": string,
  "incident_subcategory": string,
  "confidence": number between 0 and 1,
  "keywords": [string],
  "technical_entities": {"ip_addresses":[string],"systems":[string],"users":[string],"software":[string],"error_codes":[string]},
  "urgency": "Low"|"Medium"|"High"|"Critical",
  "record_type": {"type":"Problem"|"Incident"|"Change"|"Case","is_major":bool,"reasoning":string},
  "service_offering": string,
  "application_service": string
}`

const narrativeSystemPrompt = `You are the narrative stage of a service-desk case classifier.
Given the case and its surrounding context, respond with ONLY a single JSON object, no prose, matching:
{
  "quick_summary": string,
  "immediate_next_steps": [string] (1 to 5 concrete, ordered actions),
  "tone": "confident"|"cautious"|"escalate"
}`

const biSystemPrompt = `You are the business-intelligence stage of a service-desk case classifier.
Base every flag on explicit evidence in the case and its context; never speculate. Respond with ONLY a
single JSON object, no prose, matching:
{
  "project_scope_detected": {"flag":bool,"reason":string},
  "executive_visibility": {"flag":bool,"reason":string},
  "compliance_impact": {"flag":bool,"reason":string},
  "financial_impact": {"flag":bool,"reason":string},
  "systemic_issue": {"flag":bool,"reason":string},
  "outside_service_hours": {"flag":bool,"reason":string}
}
Every "reason" must be non-empty when "flag" is true, and omitted or empty when "flag" is false.`

type categorizationOutput struct {
	Category             string                     `json:"category"`
	Subcategory          string                     `json:"subcategory"`
	IncidentCategory      string                    `json:"incident_category"`
	IncidentSubcategory   string                    `json:"incident_subcategory"`
	Confidence            *float64                  `json:"confidence"`
	Keywords              []string                  `json:"keywords"`
	TechnicalEntities      models.TechnicalEntities `json:"technical_entities"`
	Urgency                string                   `json:"urgency"`
	RecordType             models.RecordTypeSuggestion `json:"record_type"`
	ServiceOffering        string                   `json:"service_offering"`
	ApplicationService     string                   `json:"application_service"`
}

type narrativeOutput struct {
	QuickSummary       string   `json:"quick_summary"`
	ImmediateNextSteps []string `json:"immediate_next_steps"`
	Tone               string   `json:"tone"`
}

type biOutput struct {
	ProjectScopeDetected flaggedBoolOutput `json:"project_scope_detected"`
	ExecutiveVisibility  flaggedBoolOutput `json:"executive_visibility"`
	ComplianceImpact     flaggedBoolOutput `json:"compliance_impact"`
	FinancialImpact      flaggedBoolOutput `json:"financial_impact"`
	SystemicIssue        flaggedBoolOutput `json:"systemic_issue"`
	OutsideServiceHours  flaggedBoolOutput `json:"outside_service_hours"`
}

type flaggedBoolOutput struct {
	Flag   bool   `json:"flag"`
	Reason string `json:"reason"`
}

func (f flaggedBoolOutput) toModel() models.FlaggedBool {
	return models.FlaggedBool{Flag: f.Flag, Reason: f.Reason}
}

func (b biOutput) toModel() models.BusinessIntelligence {
	return models.BusinessIntelligence{
		ProjectScopeDetected: b.ProjectScopeDetected.toModel(),
		ExecutiveVisibility:  b.ExecutiveVisibility.toModel(),
		ComplianceImpact:     b.ComplianceImpact.toModel(),
		FinancialImpact:      b.FinancialImpact.toModel(),
		SystemicIssue:        b.SystemicIssue.toModel(),
		OutsideServiceHours:  b.OutsideServiceHours.toModel(),
	}
}

func (p *Pipeline) runCategorization(ctx context.Context, contextText string) (categorizationOutput, llm.Response, error) {
	var out categorizationOutput
	resp, err := p.runStage(ctx, "categorization", categorizationSystemPrompt, contextText, categorizationTemperature, &out)
	return out, resp, err
}

func (p *Pipeline) runNarrative(ctx context.Context, contextText string) (narrativeOutput, llm.Response, error) {
	var out narrativeOutput
	resp, err := p.runStage(ctx, "narrative", narrativeSystemPrompt, contextText, narrativeTemperature, &out)
	return out, resp, err
}

func (p *Pipeline) runBusinessIntelligence(ctx context.Context, contextText string) (biOutput, llm.Response, error) {
	var out biOutput
	resp, err := p.runStage(ctx, "business_intelligence", biSystemPrompt, contextText, biTemperature, &out)
	return out, resp, err
}
