package contextpack

import (
	"context"
	"log/slog"

	"github.com/svcdesk/caseintake/pkg/models"
	"github.com/svcdesk/caseintake/pkg/musclememory"
	"github.com/svcdesk/caseintake/pkg/repository"
)

const (
	maxSimilarCases = 3
	maxKBArticles   = 3
	maxExemplars    = 3
)

// Loader assembles a ContextPack for one case, ahead of classification.
type Loader struct {
	repo       *repository.Adapter
	similar    *SimilarCaseFinder
	exemplars  *musclememory.Retriever
	log        *slog.Logger
}

func NewLoader(repo *repository.Adapter, similar *SimilarCaseFinder, exemplars *musclememory.Retriever) *Loader {
	return &Loader{repo: repo, similar: similar, exemplars: exemplars, log: slog.With("component", "contextpack.loader")}
}

// Load fetches the case plus every enrichment section. callerID/channelID
// drive the repository adapter's feature-flag routing (spec.md §4.9); a
// failure in the case read itself is fatal, everything else degrades to an
// absent section rather than failing the whole pipeline run.
func (l *Loader) Load(ctx context.Context, callerID, channelID, caseID string) (*models.ContextPack, error) {
	c, err := l.repo.GetCase(ctx, callerID, channelID, caseID)
	if err != nil {
		return nil, err
	}

	pack := &models.ContextPack{Case: *c}

	if c.Account != "" {
		if bc, err := l.repo.GetBusinessContext(ctx, callerID, channelID, c.Account); err != nil {
			l.log.Warn("business context lookup failed, omitting section", "case_number", c.Number, "error", err)
		} else {
			pack.Business = bc
		}
	}

	queryText := c.ShortDescription + " " + c.Description

	if l.similar != nil {
		if cases, err := l.similar.Find(ctx, queryText, c.Number, maxSimilarCases); err != nil {
			l.log.Warn("similar case lookup failed, omitting section", "case_number", c.Number, "error", err)
		} else {
			pack.SimilarCases = cases
		}
	}

	if articles, err := l.repo.SearchKB(ctx, callerID, channelID, queryText, maxKBArticles); err != nil {
		l.log.Warn("kb search failed, omitting section", "case_number", c.Number, "error", err)
	} else {
		pack.KBArticles = articles
	}

	if l.exemplars != nil {
		if ex, err := l.exemplars.Retrieve(ctx, queryText, ""); err != nil {
			l.log.Warn("exemplar retrieval failed, omitting section", "case_number", c.Number, "error", err)
		} else if len(ex) > maxExemplars {
			pack.Exemplars = ex[:maxExemplars]
		} else {
			pack.Exemplars = ex
		}
	}

	return pack, nil
}
