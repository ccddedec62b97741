// Package validator runs the deterministic quality-gate rule engine over a
// classification result, producing the APPROVED / CLARIFICATION_NEEDED /
// BLOCKED verdict the rest of the pipeline acts on (spec.md §4.4).
package validator

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

// Store persists quality gates against the quality_gates table.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

type gateRow struct {
	ID           string         `db:"id"`
	CaseID       string         `db:"case_id"`
	CaseNumber   string         `db:"case_number"`
	Status       string         `db:"status"`
	Blocked      bool           `db:"blocked"`
	RiskLevel    string         `db:"risk_level"`
	ReviewerID   string         `db:"reviewer_id"`
	ReviewReason string         `db:"review_reason"`
	Decision     []byte         `db:"decision"`
	CreatedAt    time.Time      `db:"created_at"`
	ReviewedAt   *time.Time     `db:"reviewed_at"`
	Version      int            `db:"version"`
}

func (r gateRow) toModel() (*models.QualityGate, error) {
	var decision models.DecisionPayload
	if len(r.Decision) > 0 {
		if err := json.Unmarshal(r.Decision, &decision); err != nil {
			return nil, caseerrors.Parse("quality gate decision payload corrupt", err)
		}
	}
	return &models.QualityGate{
		ID:           r.ID,
		CaseID:       r.CaseID,
		CaseNumber:   r.CaseNumber,
		Status:       models.GateStatus(r.Status),
		Blocked:      r.Blocked,
		RiskLevel:    models.RiskLevel(r.RiskLevel),
		ReviewerID:   r.ReviewerID,
		ReviewReason: r.ReviewReason,
		Decision:     decision,
		CreatedAt:    r.CreatedAt,
		ReviewedAt:   r.ReviewedAt,
		Version:      r.Version,
	}, nil
}

// Create inserts a brand-new NEW-status gate for a case.
func (s *Store) Create(ctx context.Context, g *models.QualityGate) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	decision, err := json.Marshal(g.Decision)
	if err != nil {
		return caseerrors.Parse("failed to encode gate decision payload", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quality_gates (id, case_id, case_number, status, blocked, risk_level, decision, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), 0)
	`, g.ID, g.CaseID, g.CaseNumber, string(g.Status), g.Blocked, string(g.RiskLevel), decision)
	if err != nil {
		return caseerrors.Transient("quality gate insert failed", err)
	}
	return nil
}

// Get reads a gate by id.
func (s *Store) Get(ctx context.Context, id string) (*models.QualityGate, error) {
	var row gateRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM quality_gates WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseerrors.Validation("quality gate not found", err)
	}
	if err != nil {
		return nil, caseerrors.Transient("quality gate read failed", err)
	}
	return row.toModel()
}

// ListBlockedOlderThan returns BLOCKED gates created before cutoff, used by
// the stuck-case monitor's sweep buckets.
func (s *Store) ListBlockedOlderThan(ctx context.Context, cutoff time.Time) ([]models.QualityGate, error) {
	var rows []gateRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM quality_gates WHERE blocked AND created_at < $1 ORDER BY created_at ASC
	`, cutoff); err != nil {
		return nil, caseerrors.Transient("blocked gate listing failed", err)
	}
	out := make([]models.QualityGate, 0, len(rows))
	for _, r := range rows {
		g, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

// CountSince reports how many gates in each status were created since
// since, for the stuck-case monitor's rolling approval/block rate report.
func (s *Store) CountSince(ctx context.Context, since time.Time) (map[models.GateStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT status, count(*) AS count FROM quality_gates WHERE created_at >= $1 GROUP BY status
	`, since); err != nil {
		return nil, caseerrors.Transient("gate status count failed", err)
	}
	out := make(map[models.GateStatus]int, len(rows))
	for _, r := range rows {
		out[models.GateStatus(r.Status)] = r.Count
	}
	return out, nil
}

// Update persists a transitioned gate's new status/decision/version.
func (s *Store) Update(ctx context.Context, g *models.QualityGate) error {
	decision, err := json.Marshal(g.Decision)
	if err != nil {
		return caseerrors.Parse("failed to encode gate decision payload", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE quality_gates SET
			status = $2, blocked = $3, risk_level = $4, reviewer_id = $5, review_reason = $6,
			decision = $7, reviewed_at = $8, version = $9
		WHERE id = $1 AND version = $9 - 1
	`, g.ID, string(g.Status), g.Blocked, string(g.RiskLevel), g.ReviewerID, g.ReviewReason,
		decision, g.ReviewedAt, g.Version)
	if err != nil {
		return caseerrors.Transient("quality gate update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return caseerrors.Transient("quality gate update rows-affected check failed", err)
	}
	if n == 0 {
		return caseerrors.Validation("quality gate update lost the optimistic-lock race", nil)
	}
	return nil
}
