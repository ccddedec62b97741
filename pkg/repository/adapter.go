package repository

import (
	"context"
	"log/slog"

	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/featureflag"
	"github.com/svcdesk/caseintake/pkg/models"
)

// Adapter routes every case/business-context/KB/work-note call to either
// the legacy or new store per pkg/featureflag's decision for the calling
// user/channel, falling back to legacy on a NEW-path exception unless
// StrictMode is set (spec.md §4.9, SPEC_FULL.md §D.1).
type Adapter struct {
	resolver *featureflag.Resolver
	cache    *FlagCache
	strict   bool
	audit    AuditRecorder
	log      *slog.Logger

	legacyCase CaseStore
	newCase    CaseStore

	legacyBusiness BusinessContextStore
	newBusiness    BusinessContextStore

	legacyKB KBStore
	newKB    KBStore

	legacyNotes WorkNoteWriter
	newNotes    WorkNoteWriter
}

// Stores bundles the legacy/new implementation pairs an Adapter wires.
// New-path fields may be nil until pkg/servicenow is wired in main; a nil
// new store always resolves to the legacy path regardless of the flag.
type Stores struct {
	LegacyCase CaseStore
	NewCase    CaseStore

	LegacyBusiness BusinessContextStore
	NewBusiness    BusinessContextStore

	LegacyKB KBStore
	NewKB    KBStore

	LegacyNotes WorkNoteWriter
	NewNotes    WorkNoteWriter
}

// NewAdapter builds the feature-flagged repository adapter. audit may be
// nil, in which case fallback events are logged only.
func NewAdapter(cfg config.FeatureFlagConfig, stores Stores, cache *FlagCache, audit AuditRecorder) *Adapter {
	if audit == nil {
		audit = noopAuditRecorder{}
	}
	return &Adapter{
		resolver:       featureflag.NewResolver(cfg),
		cache:          cache,
		strict:         cfg.StrictMode,
		audit:          audit,
		log:            slog.With("component", "repository.adapter"),
		legacyCase:     stores.LegacyCase,
		newCase:        stores.NewCase,
		legacyBusiness: stores.LegacyBusiness,
		newBusiness:    stores.NewBusiness,
		legacyKB:       stores.LegacyKB,
		newKB:          stores.NewKB,
		legacyNotes:    stores.LegacyNotes,
		newNotes:       stores.NewNotes,
	}
}

func (a *Adapter) path(ctx context.Context, callerID, channelID string) featureflag.Path {
	if a.cache != nil {
		return a.cache.Resolve(ctx, a.resolver, callerID, channelID)
	}
	return a.resolver.Resolve(callerID, channelID)
}

// GetCase resolves a case record, routing between stores per spec.md §4.9.
func (a *Adapter) GetCase(ctx context.Context, callerID, channelID, caseID string) (*models.Case, error) {
	if a.newCase == nil || a.path(ctx, callerID, channelID) == featureflag.PathLegacy {
		return a.legacyCase.GetCase(ctx, caseID)
	}

	c, err := a.newCase.GetCase(ctx, caseID)
	if err == nil {
		return c, nil
	}
	return a.fallbackCase(ctx, "case", caseID, err)
}

func (a *Adapter) fallbackCase(ctx context.Context, entityType, entityID string, newErr error) (*models.Case, error) {
	if a.strict {
		return nil, newErr
	}
	a.log.Warn("new-path case lookup failed, falling back to legacy", "case_id", entityID, "error", newErr)
	if err := a.audit.RecordFallback(ctx, entityType, entityID, newErr.Error()); err != nil {
		a.log.Warn("failed to record repository fallback audit entry", "error", err)
	}
	return a.legacyCase.GetCase(ctx, entityID)
}

// GetBusinessContext resolves an account's business context.
func (a *Adapter) GetBusinessContext(ctx context.Context, callerID, channelID, account string) (*models.BusinessContext, error) {
	if a.newBusiness == nil || a.path(ctx, callerID, channelID) == featureflag.PathLegacy {
		return a.legacyBusiness.GetBusinessContext(ctx, account)
	}

	bc, err := a.newBusiness.GetBusinessContext(ctx, account)
	if err == nil {
		return bc, nil
	}
	if a.strict {
		return nil, err
	}
	a.log.Warn("new-path business context lookup failed, falling back to legacy", "account", account, "error", err)
	if aerr := a.audit.RecordFallback(ctx, "business_context", account, err.Error()); aerr != nil {
		a.log.Warn("failed to record repository fallback audit entry", "error", aerr)
	}
	return a.legacyBusiness.GetBusinessContext(ctx, account)
}

// SearchKB searches knowledge-base articles.
func (a *Adapter) SearchKB(ctx context.Context, callerID, channelID, query string, limit int) ([]models.KBArticle, error) {
	if a.newKB == nil || a.path(ctx, callerID, channelID) == featureflag.PathLegacy {
		return a.legacyKB.SearchKB(ctx, query, limit)
	}

	articles, err := a.newKB.SearchKB(ctx, query, limit)
	if err == nil {
		return articles, nil
	}
	if a.strict {
		return nil, err
	}
	a.log.Warn("new-path KB search failed, falling back to legacy", "query", query, "error", err)
	if aerr := a.audit.RecordFallback(ctx, "kb", query, err.Error()); aerr != nil {
		a.log.Warn("failed to record repository fallback audit entry", "error", aerr)
	}
	return a.legacyKB.SearchKB(ctx, query, limit)
}

// PostWorkNote appends a work note to a case.
func (a *Adapter) PostWorkNote(ctx context.Context, callerID, channelID, caseID, note string) error {
	if a.newNotes == nil || a.path(ctx, callerID, channelID) == featureflag.PathLegacy {
		return a.legacyNotes.PostWorkNote(ctx, caseID, note)
	}

	err := a.newNotes.PostWorkNote(ctx, caseID, note)
	if err == nil {
		return nil
	}
	if a.strict {
		return err
	}
	a.log.Warn("new-path work note write failed, falling back to legacy", "case_id", caseID, "error", err)
	if aerr := a.audit.RecordFallback(ctx, "work_note", caseID, err.Error()); aerr != nil {
		a.log.Warn("failed to record repository fallback audit entry", "error", aerr)
	}
	return a.legacyNotes.PostWorkNote(ctx, caseID, note)
}
