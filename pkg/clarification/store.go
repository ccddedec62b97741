// Package clarification runs the clarification session state machine
// (spec.md §4.5): posting questions, tracking responses, sending reminders
// at a configured lead time, and expiring a session that never gets a
// full answer back to the quality gate as BLOCKED.
package clarification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// Store persists clarification sessions against the
// clarification_sessions table.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

type sessionRow struct {
	ID            string    `db:"id"`
	CaseID        string    `db:"case_id"`
	CaseNumber    string    `db:"case_number"`
	QualityGateID string    `db:"quality_gate_id"`
	Questions     []byte    `db:"questions"`
	Responses     []byte    `db:"responses"`
	Status        string    `db:"status"`
	ChannelID     string    `db:"channel_id"`
	ThreadTS      string    `db:"thread_ts"`
	RemindersSent int       `db:"reminders_sent"`
	CreatedAt     time.Time `db:"created_at"`
	ExpiresAt     time.Time `db:"expires_at"`
	Version       int       `db:"version"`
}

func (r sessionRow) toModel() (*models.ClarificationSession, error) {
	var questions []models.Question
	if err := json.Unmarshal(r.Questions, &questions); err != nil {
		return nil, caseerrors.Parse("clarification session questions corrupt", err)
	}
	var responses map[string]string
	if err := json.Unmarshal(r.Responses, &responses); err != nil {
		return nil, caseerrors.Parse("clarification session responses corrupt", err)
	}
	return &models.ClarificationSession{
		ID:            r.ID,
		CaseID:        r.CaseID,
		CaseNumber:    r.CaseNumber,
		QualityGateID: r.QualityGateID,
		Questions:     questions,
		Responses:     responses,
		Status:        models.SessionStatus(r.Status),
		ChannelID:     r.ChannelID,
		ThreadTS:      r.ThreadTS,
		RemindersSent: r.RemindersSent,
		CreatedAt:     r.CreatedAt,
		ExpiresAt:     r.ExpiresAt,
		Version:       r.Version,
	}, nil
}

// Create inserts a brand-new ACTIVE session.
func (s *Store) Create(ctx context.Context, sess *models.ClarificationSession) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	questions, err := json.Marshal(sess.Questions)
	if err != nil {
		return caseerrors.Parse("failed to encode clarification questions", err)
	}
	if sess.Responses == nil {
		sess.Responses = map[string]string{}
	}
	responses, err := json.Marshal(sess.Responses)
	if err != nil {
		return caseerrors.Parse("failed to encode clarification responses", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clarification_sessions
			(id, case_id, case_number, quality_gate_id, questions, responses, status,
			 channel_id, thread_ts, reminders_sent, created_at, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, now(), $10, 0)
	`, sess.ID, sess.CaseID, sess.CaseNumber, sess.QualityGateID, questions, responses,
		string(sess.Status), sess.ChannelID, sess.ThreadTS, sess.ExpiresAt)
	if err != nil {
		return caseerrors.Transient("clarification session insert failed", err)
	}
	return nil
}

// Get reads a session by id.
func (s *Store) Get(ctx context.Context, id string) (*models.ClarificationSession, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM clarification_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseerrors.Validation("clarification session not found", err)
	}
	if err != nil {
		return nil, caseerrors.Transient("clarification session read failed", err)
	}
	return row.toModel()
}

// ListActiveDueForReminder returns ACTIVE sessions whose next reminder is
// due: now is past (expires_at - leadTime) for the (reminders_sent+1)'th
// reminder, capped at maxReminders, and the session has not already
// expired.
func (s *Store) ListActiveDueForReminder(ctx context.Context, now time.Time, leadTime time.Duration, maxReminders int) ([]models.ClarificationSession, error) {
	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM clarification_sessions
		WHERE status = 'ACTIVE' AND reminders_sent < $1 AND expires_at > $2
		  AND expires_at - ($3 * (reminders_sent + 1)) <= $2
		ORDER BY expires_at ASC
	`, maxReminders, now, leadTime); err != nil {
		return nil, caseerrors.Transient("clarification reminder listing failed", err)
	}
	return toModels(rows)
}

// ListActiveExpired returns ACTIVE sessions whose expires_at has passed.
func (s *Store) ListActiveExpired(ctx context.Context, now time.Time) ([]models.ClarificationSession, error) {
	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM clarification_sessions WHERE status = 'ACTIVE' AND expires_at <= $1
	`, now); err != nil {
		return nil, caseerrors.Transient("clarification expiry listing failed", err)
	}
	return toModels(rows)
}

func toModels(rows []sessionRow) ([]models.ClarificationSession, error) {
	out := make([]models.ClarificationSession, 0, len(rows))
	for _, r := range rows {
		sess, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, nil
}

// Update persists a session's responses/status/reminders/threadTS with
// optimistic locking on version.
func (s *Store) Update(ctx context.Context, sess *models.ClarificationSession) error {
	responses, err := json.Marshal(sess.Responses)
	if err != nil {
		return caseerrors.Parse("failed to encode clarification responses", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE clarification_sessions SET
			responses = $2, status = $3, channel_id = $4, thread_ts = $5,
			reminders_sent = $6, version = $7
		WHERE id = $1 AND version = $7 - 1
	`, sess.ID, responses, string(sess.Status), sess.ChannelID, sess.ThreadTS,
		sess.RemindersSent, sess.Version)
	if err != nil {
		return caseerrors.Transient("clarification session update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return caseerrors.Transient("clarification session update rows-affected check failed", err)
	}
	if n == 0 {
		return caseerrors.Validation("clarification session update lost the optimistic-lock race", nil)
	}
	return nil
}
