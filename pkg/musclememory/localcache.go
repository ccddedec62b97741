package musclememory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// LocalCache is a single-file SQLite-backed Store for local development and
// offline tests, standing in for PostgresStore when no cluster Postgres is
// reachable. It implements the same Store interface so Retriever never
// knows which backend it's talking to.
type LocalCache struct {
	db *sql.DB
}

// NewLocalCache opens (creating if absent) a SQLite database at path and
// ensures its exemplars table exists.
func NewLocalCache(path string) (*LocalCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local exemplar cache: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS exemplars (
			id TEXT PRIMARY KEY,
			case_number TEXT NOT NULL,
			interaction_type TEXT NOT NULL DEFAULT '',
			input_context TEXT NOT NULL,
			action_taken TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			embedding TEXT NOT NULL,
			quality_score REAL NOT NULL DEFAULT 0,
			supervisor_approved INTEGER,
			outcome_successful INTEGER,
			human_feedback REAL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create local exemplar cache schema: %w", err)
	}
	return &LocalCache{db: db}, nil
}

func (c *LocalCache) Close() error { return c.db.Close() }

func (c *LocalCache) List(ctx context.Context, interactionType string) ([]models.Exemplar, error) {
	query := `SELECT id, case_number, interaction_type, input_context, action_taken, outcome,
		embedding, quality_score, supervisor_approved, outcome_successful, human_feedback
		FROM exemplars`
	args := []any{}
	if interactionType != "" {
		query += ` WHERE interaction_type = ?`
		args = append(args, interactionType)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, caseerrors.Transient("local exemplar cache list failed", err)
	}
	defer rows.Close()

	var out []models.Exemplar
	for rows.Next() {
		var (
			e              models.Exemplar
			embeddingJSON  string
			supervisor     sql.NullInt64
			outcomeSuccess sql.NullInt64
			humanFeedback  sql.NullFloat64
		)
		if err := rows.Scan(&e.ID, &e.CaseNumber, &e.InteractionType, &e.InputContext, &e.ActionTaken,
			&e.Outcome, &embeddingJSON, &e.QualityScore, &supervisor, &outcomeSuccess, &humanFeedback); err != nil {
			return nil, caseerrors.Transient("local exemplar cache scan failed", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &e.Embedding); err != nil {
			return nil, caseerrors.Parse("local exemplar cache embedding corrupt", err)
		}
		if supervisor.Valid {
			b := supervisor.Int64 != 0
			e.QualitySignals.SupervisorApproved = &b
		}
		if outcomeSuccess.Valid {
			b := outcomeSuccess.Int64 != 0
			e.QualitySignals.OutcomeSuccessful = &b
		}
		if humanFeedback.Valid {
			e.QualitySignals.HumanFeedback = &humanFeedback.Float64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *LocalCache) Insert(ctx context.Context, e *models.Exemplar) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	embeddingJSON, err := json.Marshal(e.Embedding)
	if err != nil {
		return caseerrors.Parse("failed to encode exemplar embedding", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO exemplars
			(id, case_number, interaction_type, input_context, action_taken, outcome,
			 embedding, quality_score, supervisor_approved, outcome_successful, human_feedback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.CaseNumber, e.InteractionType, e.InputContext, e.ActionTaken, e.Outcome,
		string(embeddingJSON), e.QualityScore,
		nullableBool(e.QualitySignals.SupervisorApproved), nullableBool(e.QualitySignals.OutcomeSuccessful),
		e.QualitySignals.HumanFeedback)
	if err != nil {
		return caseerrors.Transient("local exemplar cache insert failed", err)
	}
	return nil
}

func (c *LocalCache) UpdateScore(ctx context.Context, id string, signals models.QualitySignals, score float64) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE exemplars SET supervisor_approved = ?, outcome_successful = ?, human_feedback = ?, quality_score = ?
		WHERE id = ?
	`, nullableBool(signals.SupervisorApproved), nullableBool(signals.OutcomeSuccessful), signals.HumanFeedback, score, id)
	if err != nil {
		return caseerrors.Transient("local exemplar cache score update failed", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return caseerrors.Validation("exemplar not found in local cache", nil)
	}
	return nil
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}
