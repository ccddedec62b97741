// Package contextpack assembles the per-pipeline-run models.ContextPack and
// renders it into the deterministic prompt text every classification stage
// shares (spec.md §4.3). Each section is loaded independently and left nil
// on any failure short of the case record itself, preserving the
// all-or-nothing section invariant on models.ContextPack.
package contextpack

import (
	"context"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/svcdesk/caseintake/pkg/models"
)

// SimilarCaseFinder surfaces prior cases with overlapping description
// keywords. There is no semantic case index in this pack (muscle-memory's
// embeddings cover action exemplars, not raw case history), so this is a
// keyword-overlap scorer over the case snapshot cache rather than a vector
// search.
type SimilarCaseFinder struct {
	db *sqlx.DB
}

func NewSimilarCaseFinder(db *sqlx.DB) *SimilarCaseFinder { return &SimilarCaseFinder{db: db} }

type snapshotRow struct {
	CaseNumber       string `db:"case_number"`
	ShortDescription string `db:"short_description"`
	LongDescription  string `db:"long_description"`
}

// Find returns up to limit prior cases (excluding excludeCaseNumber) whose
// description shares the highest keyword overlap with the query text.
func (f *SimilarCaseFinder) Find(ctx context.Context, queryText, excludeCaseNumber string, limit int) ([]models.SimilarCase, error) {
	var rows []snapshotRow
	if err := f.db.SelectContext(ctx, &rows, `
		SELECT case_number, short_description, long_description FROM case_snapshots
		WHERE case_number <> $1
		ORDER BY fetched_at DESC LIMIT 200
	`, excludeCaseNumber); err != nil {
		return nil, err
	}

	queryTokens := tokenize(queryText)
	type scored struct {
		row   snapshotRow
		score float64
	}
	var candidates []scored
	for _, r := range rows {
		score := jaccard(queryTokens, tokenize(r.ShortDescription+" "+r.LongDescription))
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{row: r, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]models.SimilarCase, len(candidates))
	for i, c := range candidates {
		out[i] = models.SimilarCase{
			Number:      c.row.CaseNumber,
			Description: c.row.ShortDescription,
			Resolution:  c.row.LongDescription,
			Similarity:  c.score,
		}
	}
	return out, nil
}

func tokenize(text string) map[string]bool {
	tokens := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:\"'()[]{}")
		if len(tok) < 3 {
			continue
		}
		tokens[tok] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
