// Package audit is the append-only sink for audit entries, persisted to
// audit_entries and counted with on-demand Prometheus metrics. Record
// accepts any entity type, but the only entries written are the repository
// adapter's fallback-to-legacy events (RecordFallback); quality gate,
// clarification session, escalation and exemplar transitions are not
// recorded.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

var entriesRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "caseintake",
	Subsystem: "audit",
	Name:      "entries_recorded_total",
	Help:      "Audit entries written, by entity type and action.",
}, []string{"entity_type", "action"})

var writeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "caseintake",
	Subsystem: "audit",
	Name:      "write_failures_total",
	Help:      "Audit entry writes that failed, by entity type.",
}, []string{"entity_type"})

// Sink persists audit entries. Writes are best-effort from the caller's
// point of view — a failed audit write is logged and counted, never
// propagated as a reason to fail the state transition it's recording.
type Sink struct {
	db *sqlx.DB
}

func NewSink(db *sqlx.DB) *Sink { return &Sink{db: db} }

// Record appends a single audit entry.
func (s *Sink) Record(ctx context.Context, entry models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now()
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		writeFailuresTotal.WithLabelValues(entry.EntityType).Inc()
		return caseerrors.Parse("failed to encode audit metadata", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
			(id, entity_type, entity_id, action, prior_state, new_state, reason, actor, performed_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.PriorState,
		entry.NewState, entry.Reason, entry.Actor, entry.PerformedAt, metadata)
	if err != nil {
		writeFailuresTotal.WithLabelValues(entry.EntityType).Inc()
		return caseerrors.Transient("audit entry insert failed", err)
	}
	entriesRecordedTotal.WithLabelValues(entry.EntityType, entry.Action).Inc()
	return nil
}

// RecordFallback implements pkg/repository.AuditRecorder: it records the
// feature-flagged adapter falling back from the new path to the legacy
// path for a single call.
func (s *Sink) RecordFallback(ctx context.Context, entityType, entityID, reason string) error {
	return s.Record(ctx, models.AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     "fallback_to_legacy",
		NewState:   "legacy",
		Reason:     reason,
		Actor:      "repository.adapter",
	})
}

// ListForEntity returns every audit entry for one entity, oldest first —
// the full history backing a case's audit trail view.
func (s *Sink) ListForEntity(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error) {
	var rows []auditRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM audit_entries WHERE entity_type = $1 AND entity_id = $2
		ORDER BY performed_at ASC, sequence ASC
	`, entityType, entityID); err != nil {
		return nil, caseerrors.Transient("audit entry listing failed", err)
	}
	out := make([]models.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

type auditRow struct {
	ID          string    `db:"id"`
	EntityType  string    `db:"entity_type"`
	EntityID    string    `db:"entity_id"`
	Action      string    `db:"action"`
	PriorState  string    `db:"prior_state"`
	NewState    string    `db:"new_state"`
	Reason      string    `db:"reason"`
	Actor       string    `db:"actor"`
	PerformedAt time.Time `db:"performed_at"`
	Sequence    int64     `db:"sequence"`
	Metadata    []byte    `db:"metadata"`
}

func (r auditRow) toModel() models.AuditEntry {
	var metadata map[string]any
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &metadata)
	}
	return models.AuditEntry{
		ID:          r.ID,
		EntityType:  r.EntityType,
		EntityID:    r.EntityID,
		Action:      r.Action,
		PriorState:  r.PriorState,
		NewState:    r.NewState,
		Reason:      r.Reason,
		Actor:       r.Actor,
		PerformedAt: r.PerformedAt,
		Sequence:    r.Sequence,
		Metadata:    metadata,
	}
}
