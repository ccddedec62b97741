// Package classification runs the three-stage LLM pipeline that turns a
// case plus its context pack into a models.ClassificationResult: strictly
// sequential categorization, narrative, and business-intelligence calls
// (spec.md §4.3). Stage order is never parallelized — each stage's prompt
// includes the shared context only, never the prior stage's output, so a
// stage failure never corrupts a sibling's input.
package classification

import (
	"context"
	"log/slog"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/llm"
	"github.com/svcdesk/caseintake/pkg/models"
)

// Fixed per-stage temperatures, per spec.md §4.3 — categorization and
// business-intelligence are deterministic extraction tasks; narrative gets
// a little room to vary phrasing.
const (
	categorizationTemperature = 0.0
	narrativeTemperature      = 0.2
	biTemperature             = 0.0

	maxStageAttempts = 2 // one retry with a stricter reminder, per spec.md §4.3
)

// Pipeline runs the three classification stages against an llm.Client.
type Pipeline struct {
	llm llm.Client
	log *slog.Logger
}

func NewPipeline(client llm.Client) *Pipeline {
	return &Pipeline{llm: client, log: slog.With("component", "classification.pipeline")}
}

// Classify runs all three stages in order against the rendered context
// pack text. A caseerrors.KindParse error means both attempts of some
// stage failed to produce valid JSON — per spec.md §4.3 the caller
// (pkg/intake.Pipeline) must treat that as a BLOCKED gate at RiskHigh
// rather than retry the whole pipeline.
func (p *Pipeline) Classify(ctx context.Context, contextText string) (*models.ClassificationResult, error) {
	catOut, catUsage, err := p.runCategorization(ctx, contextText)
	if err != nil {
		return nil, err
	}

	narrOut, narrUsage, err := p.runNarrative(ctx, contextText)
	if err != nil {
		return nil, err
	}

	biOut, biUsage, err := p.runBusinessIntelligence(ctx, contextText)
	if err != nil {
		return nil, err
	}

	result := &models.ClassificationResult{
		Category:             catOut.Category,
		Subcategory:          catOut.Subcategory,
		IncidentCategory:      catOut.IncidentCategory,
		IncidentSubcategory:   catOut.IncidentSubcategory,
		Keywords:              catOut.Keywords,
		TechnicalEntities:      catOut.TechnicalEntities,
		Urgency:                models.Urgency(catOut.Urgency),
		RecordType:             catOut.RecordType,
		ServiceOffering:        catOut.ServiceOffering,
		ApplicationService:     catOut.ApplicationService,
		Narrative:              models.Narrative{
			QuickSummary:       narrOut.QuickSummary,
			ImmediateNextSteps: narrOut.ImmediateNextSteps,
			Tone:               models.Tone(narrOut.Tone),
		},
		BusinessIntelligence: biOut.toModel(),
		Usage: models.StageUsage{
			CategorizationPromptTokens: catUsage.InputTokens,
			CategorizationOutputTokens: catUsage.OutputTokens,
			NarrativePromptTokens:      narrUsage.InputTokens,
			NarrativeOutputTokens:      narrUsage.OutputTokens,
			BIPromptTokens:             biUsage.InputTokens,
			BIOutputTokens:             biUsage.OutputTokens,
		},
	}
	if catOut.Confidence != nil {
		result.Confidence = catOut.Confidence
	}

	if err := result.Validate(); err != nil {
		return nil, caseerrors.Parse("assembled classification result failed validation", err)
	}
	return result, nil
}

// runStage issues the completion call, extracting JSON into out. On a
// parse failure it retries once with an appended reminder that the
// response must be a single JSON object and nothing else.
func (p *Pipeline) runStage(ctx context.Context, stage, system, user string, temperature float64, out any) (llm.Response, error) {
	var lastErr error
	req := llm.Request{System: system, User: user, Temperature: temperature}

	for attempt := 1; attempt <= maxStageAttempts; attempt++ {
		resp, err := p.llm.Complete(ctx, req)
		if err != nil {
			return llm.Response{}, err
		}

		if err := llm.ExtractJSON(resp.Text, out); err != nil {
			lastErr = err
			p.log.Warn("stage produced unparseable JSON, retrying", "stage", stage, "attempt", attempt)
			req.User = user + "\n\nYour previous reply was not a single valid JSON object. Respond with ONLY the JSON object, no prose, no markdown fences."
			continue
		}
		return resp, nil
	}

	return llm.Response{}, caseerrors.Parse("classification stage "+stage+" failed to parse after retry", lastErr)
}
