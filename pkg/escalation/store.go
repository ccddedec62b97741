package escalation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// Store persists escalations against the escalations table. The partial
// unique index uq_escalations_active_per_case enforces "at most one
// PENDING/POSTED escalation per case number" at insert time; Create
// surfaces a violation as caseerrors.Duplicate.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

type escalationRow struct {
	ID             string     `db:"id"`
	CaseNumber     string     `db:"case_number"`
	Triggers       pq.StringArray `db:"triggers"`
	BIScore        float64    `db:"bi_score"`
	ChannelID      string     `db:"channel_id"`
	RuleName       string     `db:"rule_name"`
	Reason         string     `db:"reason"`
	MessageTS      string     `db:"message_ts"`
	Status         string     `db:"status"`
	CreatedAt      time.Time  `db:"created_at"`
	AcknowledgedAt *time.Time `db:"acknowledged_at"`
	AcknowledgedBy string     `db:"acknowledged_by"`
}

func (r escalationRow) toModel() *models.Escalation {
	return &models.Escalation{
		ID:             r.ID,
		CaseNumber:     r.CaseNumber,
		Triggers:       []string(r.Triggers),
		BIScore:        r.BIScore,
		ChannelID:      r.ChannelID,
		RuleName:       r.RuleName,
		Reason:         r.Reason,
		MessageTS:      r.MessageTS,
		Status:         models.EscalationStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		AcknowledgedAt: r.AcknowledgedAt,
		AcknowledgedBy: r.AcknowledgedBy,
	}
}

// Create inserts a new PENDING escalation. Returns caseerrors.Duplicate if
// the case number already has an active (PENDING/POSTED) escalation.
func (s *Store) Create(ctx context.Context, e *models.Escalation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escalations (id, case_number, triggers, bi_score, channel_id, rule_name, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, e.ID, e.CaseNumber, pq.StringArray(e.Triggers), e.BIScore, e.ChannelID, e.RuleName, e.Reason, string(e.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return caseerrors.Duplicate("an active escalation already exists for this case", err)
		}
		return caseerrors.Transient("escalation insert failed", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Get reads an escalation by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Escalation, error) {
	var row escalationRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM escalations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseerrors.Validation("escalation not found", err)
	}
	if err != nil {
		return nil, caseerrors.Transient("escalation read failed", err)
	}
	return row.toModel(), nil
}

// UpdatePosted records the Slack message timestamp and moves the
// escalation to POSTED.
func (s *Store) UpdatePosted(ctx context.Context, id, messageTS string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE escalations SET status = 'POSTED', message_ts = $2 WHERE id = $1
	`, id, messageTS)
	if err != nil {
		return caseerrors.Transient("escalation posted-update failed", err)
	}
	return nil
}

// Acknowledge moves an escalation to ACKNOWLEDGED.
func (s *Store) Acknowledge(ctx context.Context, id, by string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE escalations SET status = 'ACKNOWLEDGED', acknowledged_at = now(), acknowledged_by = $2
		WHERE id = $1 AND status IN ('PENDING', 'POSTED')
	`, id, by)
	if err != nil {
		return caseerrors.Transient("escalation acknowledge failed", err)
	}
	return nil
}

// ListActiveForCase returns PENDING/POSTED escalations for a case number,
// used by the dedup check before creating a new one.
func (s *Store) ListActiveForCase(ctx context.Context, caseNumber string) ([]models.Escalation, error) {
	var rows []escalationRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM escalations WHERE case_number = $1 AND status IN ('PENDING', 'POSTED')
	`, caseNumber); err != nil {
		return nil, caseerrors.Transient("active escalation listing failed", err)
	}
	out := make([]models.Escalation, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toModel())
	}
	return out, nil
}
