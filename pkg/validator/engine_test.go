package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/models"
)

func baseResult() *models.ClassificationResult {
	confidence := 0.9
	return &models.ClassificationResult{
		Category:   "network",
		Confidence: &confidence,
		RecordType: models.RecordTypeSuggestion{Type: models.RecordTypeIncident},
	}
}

func TestDecideApprovesCleanResult(t *testing.T) {
	e := NewEngine(config.ThresholdConfig{ClassificationConfidence: 0.7}, config.ValidatorConfig{})
	status, decision := e.Decide(baseResult())
	assert.Equal(t, models.GateStatusApproved, status)
	assert.Empty(t, decision.Warnings)
}

func TestDecideFlagsComplianceRecordTypeMismatch(t *testing.T) {
	result := baseResult()
	result.RecordType.Type = models.RecordTypeCase
	result.BusinessIntelligence.ComplianceImpact = models.FlaggedBool{Flag: true, Reason: "PCI data exposed"}

	e := NewEngine(config.ThresholdConfig{ClassificationConfidence: 0.7}, config.ValidatorConfig{})
	status, decision := e.Decide(result)
	assert.Equal(t, models.GateStatusClarificationNeeded, status)
	assert.NotEmpty(t, decision.Warnings)
}

func TestDecideFlagsSystemicIssueRecordTypeMismatch(t *testing.T) {
	result := baseResult()
	result.BusinessIntelligence.SystemicIssue = models.FlaggedBool{Flag: true, Reason: "widespread outage"}

	e := NewEngine(config.ThresholdConfig{ClassificationConfidence: 0.7}, config.ValidatorConfig{})
	status, _ := e.Decide(result)
	assert.Equal(t, models.GateStatusClarificationNeeded, status)
}

func TestDecideFlagsHighRiskCategory(t *testing.T) {
	result := baseResult()
	result.Category = "Security"

	e := NewEngine(config.ThresholdConfig{ClassificationConfidence: 0.7},
		config.ValidatorConfig{HighRiskCategories: []string{"Security"}})
	status, decision := e.Decide(result)
	assert.Equal(t, models.GateStatusClarificationNeeded, status)
	assert.NotEmpty(t, decision.Warnings)
}

func TestDecideLowersConfidenceBelowThreshold(t *testing.T) {
	result := baseResult()
	low := 0.4
	result.Confidence = &low

	e := NewEngine(config.ThresholdConfig{ClassificationConfidence: 0.7}, config.ValidatorConfig{})
	status, decision := e.Decide(result)
	assert.Equal(t, models.GateStatusClarificationNeeded, status)
	require.NotNil(t, decision.AdjustedConfidence)
	assert.InDelta(t, 0.4, *decision.AdjustedConfidence, 1e-9)
}

func TestDecideFlagsExecutiveVisibility(t *testing.T) {
	result := baseResult()
	result.BusinessIntelligence.ExecutiveVisibility = models.FlaggedBool{Flag: true, Reason: "CEO escalated"}

	e := NewEngine(config.ThresholdConfig{ClassificationConfidence: 0.7}, config.ValidatorConfig{})
	status, _ := e.Decide(result)
	assert.Equal(t, models.GateStatusClarificationNeeded, status)
}

func TestDecideFlagsNonBAUCategory(t *testing.T) {
	result := baseResult()
	result.Category = "Legal"

	e := NewEngine(config.ThresholdConfig{ClassificationConfidence: 0.7},
		config.ValidatorConfig{NonBAUCategories: []string{"Legal"}})
	status, _ := e.Decide(result)
	assert.Equal(t, models.GateStatusClarificationNeeded, status)
}
