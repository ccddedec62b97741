package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CreateSupplementalIndexes creates indexes not expressed as plain DDL in
// the embedded migrations: GIN indexes over JSONB columns, used for
// operator search over audit metadata and gate decisions.
func CreateSupplementalIndexes(ctx context.Context, db *sqlx.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_metadata_gin ON audit_entries USING gin(metadata)`,
		`CREATE INDEX IF NOT EXISTS idx_quality_gates_decision_gin ON quality_gates USING gin(decision)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create supplemental index: %w", err)
		}
	}
	return nil
}
