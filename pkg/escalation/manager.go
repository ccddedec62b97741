package escalation

import (
	"context"
	"log/slog"

	"github.com/svcdesk/caseintake/pkg/config"
	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// Notifier is the Slack-posting surface the manager needs; satisfied by
// pkg/slack.Notifier.
type Notifier interface {
	PostEscalation(ctx context.Context, esc *models.Escalation) (string, error)
}

// Manager evaluates a classification result against the Router and, when
// it should escalate, dedups against active escalations and posts to
// Slack.
type Manager struct {
	router   *Router
	store    *Store
	notifier Notifier
	log      *slog.Logger
}

func NewManager(cfg config.EscalationConfig, biScoreThreshold float64, store *Store, notifier Notifier) *Manager {
	return &Manager{
		router:   NewRouter(cfg, biScoreThreshold),
		store:    store,
		notifier: notifier,
		log:      slog.Default().With("component", "escalation.manager"),
	}
}

// Evaluate checks the classification result and, if it should escalate and
// no active escalation already exists for this case, creates and posts
// one. Returns nil, nil if the result doesn't trigger escalation or one is
// already active. Any PENDING/POSTED escalation for the case suppresses a
// new one, however old it is; there is no 24h window.
func (m *Manager) Evaluate(ctx context.Context, caseNumber string, result *models.ClassificationResult, isNonBAU bool, attrs CaseAttributes) (*models.Escalation, error) {
	should, triggers, score, rule := m.router.Evaluate(result, isNonBAU, attrs)
	if !should {
		return nil, nil
	}

	active, err := m.store.ListActiveForCase(ctx, caseNumber)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		m.log.Info("escalation suppressed, already active for case", "case_number", caseNumber)
		return nil, nil
	}

	esc := &models.Escalation{
		CaseNumber: caseNumber,
		Triggers:   triggers,
		BIScore:    score,
		ChannelID:  rule.ChannelID,
		RuleName:   rule.Name,
		Reason:     Reason(triggers),
		Status:     models.EscalationStatusPending,
	}
	if err := m.store.Create(ctx, esc); err != nil {
		if kind, ok := caseerrors.KindOf(err); ok && kind == caseerrors.KindDuplicate {
			m.log.Info("escalation create raced with an existing active one", "case_number", caseNumber)
			return nil, nil
		}
		return nil, err
	}

	ts, err := m.notifier.PostEscalation(ctx, esc)
	if err != nil {
		m.log.Warn("failed to post escalation to Slack", "escalation_id", esc.ID, "error", err)
		return esc, err
	}
	esc.MessageTS = ts
	if err := m.store.UpdatePosted(ctx, esc.ID, ts); err != nil {
		return esc, err
	}
	esc.Status = models.EscalationStatusPosted
	return esc, nil
}

// Acknowledge resolves an escalation acknowledged via a Slack interactivity
// action.
func (m *Manager) Acknowledge(ctx context.Context, escalationID, by string) error {
	return m.store.Acknowledge(ctx, escalationID, by)
}
