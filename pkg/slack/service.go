package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// NotifierConfig holds the parameters needed to construct a Notifier.
type NotifierConfig struct {
	Token        string
	DashboardURL string
}

// Notifier posts clarification and escalation messages to Slack on behalf
// of pkg/clarification and pkg/escalation, and resolves the threads a
// Slack-originated case started. Unlike the teacher's fail-open session
// notifier, Notifier returns errors: a failed post here means a human
// never saw the question or escalation, so the caller must retry rather
// than silently drop it.
type Notifier struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewNotifier creates a new Slack notifier. Returns nil if Token is empty,
// so Slack delivery can be disabled entirely in configs that don't set it.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.Token == "" {
		return nil
	}
	return &Notifier{
		client:       NewClient(cfg.Token),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-notifier"),
	}
}

// NewNotifierWithClient creates a Notifier backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewNotifierWithClient(client *Client, dashboardURL string) *Notifier {
	return &Notifier{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-notifier"),
	}
}

func (n *Notifier) caseURL(caseNumber string) string {
	return fmt.Sprintf("%s/cases/%s", n.dashboardURL, caseNumber)
}

// PostClarificationQuestions posts the session's questions to its
// ChannelID and returns the new message's timestamp for use as ThreadTS.
func (n *Notifier) PostClarificationQuestions(ctx context.Context, session *models.ClarificationSession) (string, error) {
	if n == nil {
		return "", caseerrors.DependencyDisabled("slack notifier not configured", nil)
	}
	blocks := BuildClarificationQuestionsMessage(session, n.caseURL(session.CaseNumber))
	ts, err := n.client.PostMessage(ctx, session.ChannelID, blocks, "", 5*time.Second)
	if err != nil {
		return "", caseerrors.Transient("failed to post clarification questions", err)
	}
	return ts, nil
}

// PostClarificationReminder posts a reminder, threaded under the
// session's original question message, listing unanswered required
// questions.
func (n *Notifier) PostClarificationReminder(ctx context.Context, session *models.ClarificationSession) error {
	if n == nil {
		return caseerrors.DependencyDisabled("slack notifier not configured", nil)
	}
	blocks := BuildClarificationReminderMessage(session, n.caseURL(session.CaseNumber))
	if _, err := n.client.PostMessage(ctx, session.ChannelID, blocks, session.ThreadTS, 5*time.Second); err != nil {
		return caseerrors.Transient("failed to post clarification reminder", err)
	}
	return nil
}

// PostClarificationResolved posts a terminal note for a session that
// expired or was cancelled without every required question answered.
func (n *Notifier) PostClarificationResolved(ctx context.Context, session *models.ClarificationSession) error {
	if n == nil {
		return caseerrors.DependencyDisabled("slack notifier not configured", nil)
	}
	blocks := BuildClarificationResolvedMessage(session)
	if _, err := n.client.PostMessage(ctx, session.ChannelID, blocks, session.ThreadTS, 5*time.Second); err != nil {
		return caseerrors.Transient("failed to post clarification resolution", err)
	}
	return nil
}

// PostEscalation posts an escalation to its routed channel and returns the
// message timestamp, persisted as Escalation.MessageTS for ack lookups.
func (n *Notifier) PostEscalation(ctx context.Context, esc *models.Escalation) (string, error) {
	if n == nil {
		return "", caseerrors.DependencyDisabled("slack notifier not configured", nil)
	}
	blocks := BuildEscalationMessage(esc, n.caseURL(esc.CaseNumber))
	ts, err := n.client.PostMessage(ctx, esc.ChannelID, blocks, "", 10*time.Second)
	if err != nil {
		return "", caseerrors.Transient("failed to post escalation", err)
	}
	return ts, nil
}

// FindThreadForCase looks up a prior message thread for a case by
// fingerprint, letting a Slack-originated case's clarification/escalation
// messages thread under the alert that started it rather than starting a
// new top-level message.
func (n *Notifier) FindThreadForCase(ctx context.Context, channelID, caseNumber string) (string, error) {
	if n == nil {
		return "", caseerrors.DependencyDisabled("slack notifier not configured", nil)
	}
	ts, err := n.client.FindMessageByFingerprint(ctx, channelID, caseNumber)
	if err != nil {
		n.logger.Warn("failed to search channel history for case fingerprint",
			"case_number", caseNumber, "error", err)
		return "", caseerrors.Transient("failed to search Slack history", err)
	}
	return ts, nil
}
