package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/svcdesk/caseintake/pkg/classification"
	"github.com/svcdesk/caseintake/pkg/clarification"
	"github.com/svcdesk/caseintake/pkg/contextpack"
	"github.com/svcdesk/caseintake/pkg/escalation"
	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
	"github.com/svcdesk/caseintake/pkg/queue"
	"github.com/svcdesk/caseintake/pkg/validator"
)

// CasePayload is the task-queue payload carried from a webhook through to
// the case worker: everything needed to load context, classify, and gate
// a single case.
type CasePayload struct {
	CaseID     string `json:"case_id"`
	CaseNumber string `json:"case_number"`
	CallerID   string `json:"caller_id"`
	ChannelID  string `json:"channel_id"`
	Client     string `json:"client"`
}

// ApprovedNotifier posts the final assistance thread once a gate clears.
type ApprovedNotifier interface {
	PostEscalation(ctx context.Context, esc *models.Escalation) (string, error)
}

// WorkNoteWriter appends a work note to a case.
type WorkNoteWriter interface {
	PostWorkNote(ctx context.Context, callerID, channelID, caseID, note string) error
}

// Pipeline is the queue.Executor that runs one case end to end: load
// context, classify, decide, and branch into clarification, escalation, or
// an approved work note, per spec.md's component dependency order
// (Repository Adapter → Context Loader → Classification Pipeline →
// Validator → Clarification FSM → Escalation Router).
type Pipeline struct {
	contextLoader *contextpack.Loader
	classifier    *classification.Pipeline
	engine        *validator.Engine
	gates         *validator.Store
	clarification *clarification.Manager
	escalation    *escalation.Manager
	notes         WorkNoteWriter
	log           *slog.Logger
}

func NewPipeline(
	contextLoader *contextpack.Loader,
	classifier *classification.Pipeline,
	engine *validator.Engine,
	gates *validator.Store,
	clarificationMgr *clarification.Manager,
	escalationMgr *escalation.Manager,
	notes WorkNoteWriter,
) *Pipeline {
	return &Pipeline{
		contextLoader: contextLoader,
		classifier:    classifier,
		engine:        engine,
		gates:         gates,
		clarification: clarificationMgr,
		escalation:    escalationMgr,
		notes:         notes,
		log:           slog.Default().With("component", "intake.pipeline"),
	}
}

// Execute implements queue.Executor. It is safe to retry: a re-delivered
// task re-runs the whole pipeline, and the repository layer's {case id,
// stage} idempotency key prevents a second gate/session row per spec.md §4.2.
func (p *Pipeline) Execute(ctx context.Context, task *queue.Task) error {
	var payload CasePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return caseerrors.Parse("failed to unmarshal case payload", err)
	}

	pack, err := p.contextLoader.Load(ctx, payload.CallerID, payload.ChannelID, payload.CaseID)
	if err != nil {
		return err
	}

	result, err := p.classifier.Classify(ctx, contextpack.Render(pack))
	if err != nil {
		return p.block(ctx, payload, err)
	}

	gate := &models.QualityGate{
		CaseID:     payload.CaseID,
		CaseNumber: payload.CaseNumber,
		Status:     models.GateStatusNew,
		RiskLevel:  models.RiskLow,
	}
	if err := p.gates.Create(ctx, gate); err != nil {
		return err
	}

	status, decision := p.engine.Decide(result)
	if _, err := gate.Transition(status); err != nil {
		return err
	}
	gate.Decision = decision
	if err := p.gates.Update(ctx, gate); err != nil {
		return err
	}

	isNonBAU := p.engine.IsNonBAU(result.Category)
	attrs := escalation.CaseAttributes{Client: payload.Client, Category: result.Category}
	if _, err := p.escalation.Evaluate(ctx, payload.CaseNumber, result, isNonBAU, attrs); err != nil {
		p.log.Warn("escalation evaluation failed", "case_number", payload.CaseNumber, "error", err)
	}

	switch status {
	case models.GateStatusClarificationNeeded:
		questions := questionsFromDecision(decision)
		if _, err := p.clarification.Start(ctx, gate.ID, payload.CaseID, payload.CaseNumber, payload.ChannelID, payload.Client, questions); err != nil {
			return err
		}
	case models.GateStatusApproved:
		note := result.Narrative.QuickSummary
		if note == "" {
			note = fmt.Sprintf("classified as %s (%s urgency)", result.Category, result.Urgency)
		}
		if err := p.notes.PostWorkNote(ctx, "intake.pipeline", payload.ChannelID, payload.CaseID, note); err != nil {
			p.log.Warn("failed to post approved work note", "case_number", payload.CaseNumber, "error", err)
		}
	}

	return nil
}

// block moves a gate to BLOCKED/RiskHigh when classification itself
// failed twice (caseerrors.KindParse), per spec.md §4.3's "surfaces the
// case to a quality gate with status BLOCKED and risk=high" rule.
func (p *Pipeline) block(ctx context.Context, payload CasePayload, cause error) error {
	if kind, ok := caseerrors.KindOf(cause); !ok || kind != caseerrors.KindParse {
		return cause
	}

	gate := &models.QualityGate{
		CaseID:     payload.CaseID,
		CaseNumber: payload.CaseNumber,
		Status:     models.GateStatusNew,
		RiskLevel:  models.RiskHigh,
	}
	if err := p.gates.Create(ctx, gate); err != nil {
		return err
	}
	if _, err := gate.Transition(models.GateStatusBlocked); err != nil {
		return err
	}
	gate.ReviewReason = cause.Error()
	return p.gates.Update(ctx, gate)
}

// questionsFromDecision turns the rule engine's warnings into clarification
// questions, one per warning, all required.
func questionsFromDecision(decision models.DecisionPayload) []models.Question {
	questions := make([]models.Question, 0, len(decision.Warnings))
	for i, warning := range decision.Warnings {
		questions = append(questions, models.Question{
			ID:       fmt.Sprintf("q%d", i+1),
			Prompt:   warning,
			Required: true,
		})
	}
	return questions
}
