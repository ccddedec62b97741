// Package repository implements the feature-flagged adapter layer
// (spec.md §4.9): every external read/write for case data, business
// context, and knowledge-base articles goes through a pair of store
// implementations — legacy and new — chosen per call by
// pkg/featureflag, with automatic fallback to legacy on a NEW-path
// exception and an audit trail of every fallback.
package repository

import (
	"context"

	"github.com/svcdesk/caseintake/pkg/models"
)

// CaseStore reads the case record a pipeline run operates on.
type CaseStore interface {
	GetCase(ctx context.Context, caseID string) (*models.Case, error)
}

// BusinessContextStore resolves the CMDB-derived business context for an
// account.
type BusinessContextStore interface {
	GetBusinessContext(ctx context.Context, account string) (*models.BusinessContext, error)
}

// KBStore searches knowledge-base articles relevant to a case.
type KBStore interface {
	SearchKB(ctx context.Context, query string, limit int) ([]models.KBArticle, error)
}

// WorkNoteWriter appends a work note to a case.
type WorkNoteWriter interface {
	PostWorkNote(ctx context.Context, caseID, note string) error
}

// AuditRecorder is the narrow slice of pkg/audit's sink the adapter needs;
// accepted as an interface so this package never imports pkg/audit.
type AuditRecorder interface {
	RecordFallback(ctx context.Context, entityType, entityID, reason string) error
}

// noopAuditRecorder is used when the caller wires no audit sink; fallback
// events are still logged, just not persisted.
type noopAuditRecorder struct{}

func (noopAuditRecorder) RecordFallback(context.Context, string, string, string) error { return nil }
