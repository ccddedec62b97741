package musclememory

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

// Store persists exemplars and lists candidates for nearest-neighbor
// scoring. Retriever does the vector math in Go since no pack dependency
// brings a pgvector-style SQL operator.
type Store interface {
	List(ctx context.Context, interactionType string) ([]models.Exemplar, error)
	Insert(ctx context.Context, e *models.Exemplar) error
	UpdateScore(ctx context.Context, id string, signals models.QualitySignals, score float64) error
}

// PostgresStore is the production store, backed by the exemplars table
// (pkg/database/migrations/0001_init.up.sql).
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore { return &PostgresStore{db: db} }

type exemplarRow struct {
	ID                 string          `db:"id"`
	CaseNumber         string          `db:"case_number"`
	InteractionType    string          `db:"interaction_type"`
	InputContext       string          `db:"input_context"`
	ActionTaken        string          `db:"action_taken"`
	Outcome            string          `db:"outcome"`
	Embedding          pq.Float64Array `db:"embedding"`
	QualityScore       float64         `db:"quality_score"`
	SupervisorApproved sql.NullBool    `db:"supervisor_approved"`
	OutcomeSuccessful  sql.NullBool    `db:"outcome_successful"`
	HumanFeedback      sql.NullFloat64 `db:"human_feedback"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r exemplarRow) toModel() models.Exemplar {
	e := models.Exemplar{
		ID:              r.ID,
		CaseNumber:      r.CaseNumber,
		InteractionType: r.InteractionType,
		InputContext:    r.InputContext,
		ActionTaken:     r.ActionTaken,
		Outcome:         r.Outcome,
		QualityScore:    r.QualityScore,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	e.Embedding = make([]float32, len(r.Embedding))
	for i, v := range r.Embedding {
		e.Embedding[i] = float32(v)
	}
	if r.SupervisorApproved.Valid {
		e.QualitySignals.SupervisorApproved = &r.SupervisorApproved.Bool
	}
	if r.OutcomeSuccessful.Valid {
		e.QualitySignals.OutcomeSuccessful = &r.OutcomeSuccessful.Bool
	}
	if r.HumanFeedback.Valid {
		e.QualitySignals.HumanFeedback = &r.HumanFeedback.Float64
	}
	return e
}

// List returns every exemplar (optionally filtered by interaction type) for
// in-process distance scoring. Callers cap the result set's relevance with
// Retriever's maxDistance/minQuality filters, not with a database-side LIMIT,
// since distance isn't known until the embedding is compared.
func (s *PostgresStore) List(ctx context.Context, interactionType string) ([]models.Exemplar, error) {
	var rows []exemplarRow
	var err error
	if interactionType == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM exemplars`)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM exemplars WHERE interaction_type = $1`, interactionType)
	}
	if err != nil {
		return nil, caseerrors.Transient("exemplar list failed", err)
	}
	out := make([]models.Exemplar, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (s *PostgresStore) Insert(ctx context.Context, e *models.Exemplar) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	embedding := make(pq.Float64Array, len(e.Embedding))
	for i, v := range e.Embedding {
		embedding[i] = float64(v)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exemplars
			(id, case_number, interaction_type, input_context, action_taken, outcome,
			 embedding, quality_score, supervisor_approved, outcome_successful, human_feedback,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	`, e.ID, e.CaseNumber, e.InteractionType, e.InputContext, e.ActionTaken, e.Outcome,
		embedding, e.QualityScore,
		e.QualitySignals.SupervisorApproved, e.QualitySignals.OutcomeSuccessful, e.QualitySignals.HumanFeedback)
	if err != nil {
		return caseerrors.Transient("exemplar insert failed", err)
	}
	return nil
}

func (s *PostgresStore) UpdateScore(ctx context.Context, id string, signals models.QualitySignals, score float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exemplars SET
			supervisor_approved = $2, outcome_successful = $3, human_feedback = $4,
			quality_score = $5, updated_at = now()
		WHERE id = $1
	`, id, signals.SupervisorApproved, signals.OutcomeSuccessful, signals.HumanFeedback, score)
	if err != nil {
		return caseerrors.Transient("exemplar score update failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return caseerrors.Transient("exemplar score update rows-affected check failed", err)
	}
	if n == 0 {
		return caseerrors.Validation("exemplar not found", errors.New(id))
	}
	return nil
}
