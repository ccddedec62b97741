package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// LegacyCaseStore reads the case_snapshots table; it never calls
// ServiceNow directly. Rows are written only by UpsertSnapshot.
type LegacyCaseStore struct {
	db *sqlx.DB
}

// NewLegacyCaseStore builds a store reading from the case_snapshots table.
func NewLegacyCaseStore(db *sqlx.DB) *LegacyCaseStore {
	return &LegacyCaseStore{db: db}
}

type caseSnapshotRow struct {
	CaseID           string `db:"case_id"`
	CaseNumber       string `db:"case_number"`
	ShortDescription string `db:"short_description"`
	LongDescription  string `db:"long_description"`
	Priority         string `db:"priority"`
	Urgency          string `db:"urgency"`
	Company          string `db:"company"`
	AssignmentGroup  string `db:"assignment_group"`
	Account          string `db:"account"`
	Category         string `db:"category"`
	FetchedAt        sql.NullTime `db:"fetched_at"`
}

// GetCase reads the last snapshot ServiceNow pushed for caseID.
func (s *LegacyCaseStore) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	var row caseSnapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT case_id, case_number, short_description, long_description, priority,
		       urgency, company, assignment_group, account, category, fetched_at
		FROM case_snapshots WHERE case_id = $1
	`, caseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseerrors.Validation(fmt.Sprintf("no cached snapshot for case %s", caseID), err)
	}
	if err != nil {
		return nil, caseerrors.Transient("legacy case snapshot read failed", err)
	}
	return &models.Case{
		ID:               row.CaseID,
		Number:           row.CaseNumber,
		ShortDescription: row.ShortDescription,
		Description:      row.LongDescription,
		Priority:         row.Priority,
		Urgency:          row.Urgency,
		Company:          row.Company,
		AssignmentGroup:  row.AssignmentGroup,
		Account:          row.Account,
		Category:         row.Category,
		UpdatedAt:        row.FetchedAt.Time,
	}, nil
}

// UpsertSnapshot writes a fresh case snapshot. No component in this module
// calls it; the new-path ServiceNow client does not write snapshots after a
// live fetch.
func (s *LegacyCaseStore) UpsertSnapshot(ctx context.Context, c *models.Case) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO case_snapshots
			(case_id, case_number, short_description, long_description, priority,
			 urgency, company, assignment_group, account, category, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (case_id) DO UPDATE SET
			case_number = EXCLUDED.case_number,
			short_description = EXCLUDED.short_description,
			long_description = EXCLUDED.long_description,
			priority = EXCLUDED.priority,
			urgency = EXCLUDED.urgency,
			company = EXCLUDED.company,
			assignment_group = EXCLUDED.assignment_group,
			account = EXCLUDED.account,
			category = EXCLUDED.category,
			fetched_at = now()
	`, c.ID, c.Number, c.ShortDescription, c.Description, c.Priority,
		c.Urgency, c.Company, c.AssignmentGroup, c.Account, c.Category)
	if err != nil {
		return caseerrors.Transient("case snapshot upsert failed", err)
	}
	return nil
}

// LegacyBusinessContextStore reads the CMDB-derived business context cache.
type LegacyBusinessContextStore struct {
	db *sqlx.DB
}

func NewLegacyBusinessContextStore(db *sqlx.DB) *LegacyBusinessContextStore {
	return &LegacyBusinessContextStore{db: db}
}

type businessContextRow struct {
	AccountName      string         `db:"account_name"`
	ServiceOfferings pq.StringArray `db:"service_offerings"`
	SupportTier      string         `db:"support_tier"`
	ExecutiveSponsor string         `db:"executive_sponsor"`
}

func (s *LegacyBusinessContextStore) GetBusinessContext(ctx context.Context, account string) (*models.BusinessContext, error) {
	var row businessContextRow
	err := s.db.GetContext(ctx, &row, `
		SELECT account_name, service_offerings, support_tier, executive_sponsor
		FROM business_contexts WHERE account = $1
	`, account)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, caseerrors.Validation(fmt.Sprintf("no cached business context for account %s", account), err)
	}
	if err != nil {
		return nil, caseerrors.Transient("legacy business context read failed", err)
	}
	return &models.BusinessContext{
		AccountName:      row.AccountName,
		ServiceOfferings: []string(row.ServiceOfferings),
		SupportTier:      row.SupportTier,
		ExecutiveSponsor: row.ExecutiveSponsor,
	}, nil
}

// UpsertBusinessContext refreshes the CMDB cache. No component in this
// module calls it; the new-path client does not write back after a live
// lookup.
func (s *LegacyBusinessContextStore) UpsertBusinessContext(ctx context.Context, account string, bc *models.BusinessContext) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO business_contexts (account, account_name, service_offerings, support_tier, executive_sponsor, fetched_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (account) DO UPDATE SET
			account_name = EXCLUDED.account_name,
			service_offerings = EXCLUDED.service_offerings,
			support_tier = EXCLUDED.support_tier,
			executive_sponsor = EXCLUDED.executive_sponsor,
			fetched_at = now()
	`, account, bc.AccountName, pq.Array(bc.ServiceOfferings), bc.SupportTier, bc.ExecutiveSponsor)
	if err != nil {
		return caseerrors.Transient("business context upsert failed", err)
	}
	return nil
}

// LegacyKBStore searches the locally cached knowledge-base index.
type LegacyKBStore struct {
	db *sqlx.DB
}

func NewLegacyKBStore(db *sqlx.DB) *LegacyKBStore {
	return &LegacyKBStore{db: db}
}

func (s *LegacyKBStore) SearchKB(ctx context.Context, query string, limit int) ([]models.KBArticle, error) {
	if limit <= 0 {
		limit = 3
	}
	var rows []struct {
		ID      string `db:"id"`
		Title   string `db:"title"`
		Snippet string `db:"snippet"`
		URL     string `db:"url"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, title, snippet, url FROM kb_articles
		WHERE lower(title) LIKE '%' || lower($1) || '%' OR lower(body) LIKE '%' || lower($1) || '%'
		ORDER BY fetched_at DESC LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, caseerrors.Transient("legacy KB search failed", err)
	}
	out := make([]models.KBArticle, len(rows))
	for i, r := range rows {
		out[i] = models.KBArticle{ID: r.ID, Title: r.Title, Snippet: r.Snippet, URL: r.URL}
	}
	return out, nil
}

// UpsertArticle refreshes the KB cache with a live search result.
func (s *LegacyKBStore) UpsertArticle(ctx context.Context, a models.KBArticle, body string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kb_articles (id, title, snippet, url, body, fetched_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, snippet = EXCLUDED.snippet,
			url = EXCLUDED.url, body = EXCLUDED.body, fetched_at = now()
	`, a.ID, a.Title, a.Snippet, a.URL, body)
	if err != nil {
		return caseerrors.Transient("KB article upsert failed", err)
	}
	return nil
}

// LegacyWorkNoteWriter queues work notes in an outbox instead of calling
// ServiceNow directly. Nothing in this module drains the outbox.
type LegacyWorkNoteWriter struct {
	db *sqlx.DB
}

func NewLegacyWorkNoteWriter(db *sqlx.DB) *LegacyWorkNoteWriter {
	return &LegacyWorkNoteWriter{db: db}
}

func (s *LegacyWorkNoteWriter) PostWorkNote(ctx context.Context, caseID, note string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO work_note_outbox (id, case_id, note) VALUES ($1, $2, $3)
	`, uuid.NewString(), caseID, note)
	if err != nil {
		return caseerrors.Transient("work note outbox write failed", err)
	}
	return nil
}
