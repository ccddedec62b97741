package clarification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/svcdesk/caseintake/pkg/config"
	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
	"github.com/svcdesk/caseintake/pkg/validator"
)

// Notifier is the Slack-posting surface the manager needs; satisfied by
// pkg/slack.Notifier.
type Notifier interface {
	PostClarificationQuestions(ctx context.Context, session *models.ClarificationSession) (string, error)
	PostClarificationReminder(ctx context.Context, session *models.ClarificationSession) error
	PostClarificationResolved(ctx context.Context, session *models.ClarificationSession) error
}

// WorkNoteWriter appends a work note to a case, satisfied by
// pkg/repository.Adapter.PostWorkNote.
type WorkNoteWriter interface {
	PostWorkNote(ctx context.Context, callerID, channelID, caseID, note string) error
}

// Manager runs the clarification session lifecycle: starting a session,
// recording responses, and sweeping for reminders/expiry.
type Manager struct {
	store    *Store
	gates    *validator.Store
	notifier Notifier
	notes    WorkNoteWriter
	cfg      config.ClarificationConfig
	log      *slog.Logger
}

func NewManager(store *Store, gates *validator.Store, notifier Notifier, notes WorkNoteWriter, cfg config.ClarificationConfig) *Manager {
	return &Manager{
		store:    store,
		gates:    gates,
		notifier: notifier,
		notes:    notes,
		cfg:      cfg,
		log:      slog.Default().With("component", "clarification.manager"),
	}
}

func (m *Manager) ttlFor(client string) time.Duration {
	if ttl, ok := m.cfg.PerClientTTL[client]; ok && ttl > 0 {
		return ttl
	}
	if m.cfg.DefaultTTL > 0 {
		return m.cfg.DefaultTTL
	}
	return 4 * time.Hour
}

// Start opens a new clarification session for a gate moved to
// CLARIFICATION_NEEDED, posts the questions to Slack, and persists the
// resulting thread.
func (m *Manager) Start(ctx context.Context, gateID, caseID, caseNumber, channelID, client string, questions []models.Question) (*models.ClarificationSession, error) {
	sess := &models.ClarificationSession{
		CaseID:        caseID,
		CaseNumber:    caseNumber,
		QualityGateID: gateID,
		Questions:     questions,
		Responses:     map[string]string{},
		Status:        models.SessionStatusActive,
		ChannelID:     channelID,
		ExpiresAt:     time.Now().Add(m.ttlFor(client)),
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	threadTS, err := m.notifier.PostClarificationQuestions(ctx, sess)
	if err != nil {
		m.log.Warn("failed to post clarification questions", "session_id", sess.ID, "error", err)
		return sess, err
	}
	sess.ThreadTS = threadTS
	sess.Version++
	if err := m.store.Update(ctx, sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// RecordResponse stores an answer and, once every required question is
// answered, transitions the session to RESPONDED.
func (m *Manager) RecordResponse(ctx context.Context, sessionID, questionID, value string) (*models.ClarificationSession, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionStatusActive {
		return nil, caseerrors.Validation(fmt.Sprintf("session %s is no longer active (status %s)", sessionID, sess.Status), nil)
	}
	if err := sess.RecordResponse(questionID, value); err != nil {
		return nil, caseerrors.Validation("unknown clarification question id", err)
	}
	if sess.AllRequiredAnswered() {
		if _, err := sess.Transition(models.SessionStatusResponded); err != nil {
			return nil, caseerrors.Validation("illegal clarification session transition", err)
		}
	} else {
		sess.Version++
	}
	if err := m.store.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Resolve moves a RESPONDED session to RESOLVED once the gate has been
// re-evaluated and the case resumed, posting the terminal note.
func (m *Manager) Resolve(ctx context.Context, sessionID string) error {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if _, err := sess.Transition(models.SessionStatusResolved); err != nil {
		return caseerrors.Validation("illegal clarification session transition", err)
	}
	if err := m.store.Update(ctx, sess); err != nil {
		return err
	}
	if err := m.notifier.PostClarificationResolved(ctx, sess); err != nil {
		m.log.Warn("failed to post clarification resolution", "session_id", sess.ID, "error", err)
	}
	return nil
}

// SweepReminders finds ACTIVE sessions due for their next reminder and
// posts it, incrementing reminders_sent.
func (m *Manager) SweepReminders(ctx context.Context) (int, error) {
	leadTime := m.cfg.ReminderLeadTime
	if leadTime <= 0 {
		leadTime = 30 * time.Minute
	}
	maxReminders := m.cfg.MaxReminders
	due, err := m.store.ListActiveDueForReminder(ctx, time.Now(), leadTime, maxReminders)
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range due {
		sess := due[i]
		if err := m.notifier.PostClarificationReminder(ctx, &sess); err != nil {
			m.log.Warn("failed to post clarification reminder", "session_id", sess.ID, "error", err)
			continue
		}
		sess.RemindersSent++
		sess.Version++
		if err := m.store.Update(ctx, &sess); err != nil {
			m.log.Warn("failed to persist reminder count", "session_id", sess.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// SweepExpirations finds ACTIVE sessions past expires_at, transitions them
// to EXPIRED, marks the associated quality gate BLOCKED, appends a
// ServiceNow work note, and posts the terminal note.
func (m *Manager) SweepExpirations(ctx context.Context) (int, error) {
	expired, err := m.store.ListActiveExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range expired {
		sess := expired[i]
		if _, err := sess.Transition(models.SessionStatusExpired); err != nil {
			m.log.Error("illegal expiry transition", "session_id", sess.ID, "error", err)
			continue
		}
		if err := m.store.Update(ctx, &sess); err != nil {
			m.log.Warn("failed to persist session expiry", "session_id", sess.ID, "error", err)
			continue
		}

		if err := m.blockGate(ctx, &sess); err != nil {
			m.log.Warn("failed to block gate on clarification expiry", "session_id", sess.ID, "error", err)
		}

		note := fmt.Sprintf("Clarification request expired without a response after %d reminder(s). Case remains blocked pending manual review.", sess.RemindersSent)
		if m.notes != nil {
			if err := m.notes.PostWorkNote(ctx, "clarification.manager", sess.ChannelID, sess.CaseID, note); err != nil {
				m.log.Warn("failed to post expiry work note", "session_id", sess.ID, "error", err)
			}
		}
		if err := m.notifier.PostClarificationResolved(ctx, &sess); err != nil {
			m.log.Warn("failed to post clarification expiry notice", "session_id", sess.ID, "error", err)
		}
		count++
	}
	return count, nil
}

func (m *Manager) blockGate(ctx context.Context, sess *models.ClarificationSession) error {
	gate, err := m.gates.Get(ctx, sess.QualityGateID)
	if err != nil {
		return err
	}
	if _, err := gate.Transition(models.GateStatusBlocked); err != nil {
		return caseerrors.Validation("illegal gate transition on clarification expiry", err)
	}
	gate.ReviewReason = "clarification session expired without required answers"
	return m.gates.Update(ctx, gate)
}
