package musclememory

import (
	"context"
	"sort"
	"time"

	"github.com/svcdesk/caseintake/pkg/config"
	"github.com/svcdesk/caseintake/pkg/models"
)

// Retriever is the muscle-memory component the context pack loader calls
// before handing the case to the classification pipeline.
type Retriever struct {
	store    Store
	embedder Embedder
	cfg      config.EmbeddingConfig
}

func NewRetriever(store Store, embedder Embedder, cfg config.EmbeddingConfig) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = 0.5
	}
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = 0.7
	}
	if cfg.DuplicateDistance <= 0 {
		cfg.DuplicateDistance = 0.05
	}
	if cfg.SimilarityCeiling <= 0 {
		cfg.SimilarityCeiling = 0.95
	}
	return &Retriever{store: store, embedder: embedder, cfg: cfg}
}

type scoredExemplar struct {
	exemplar models.Exemplar
	distance float64
}

// Retrieve embeds queryText and returns up to TopK exemplars within
// MaxDistance and at or above MinQuality, optionally restricted to a single
// interaction type (spec.md §4.7). Returns nil (not an error) when nothing
// qualifies, so a cold muscle-memory store never blocks the pipeline.
func (r *Retriever) Retrieve(ctx context.Context, queryText, interactionType string) ([]models.Exemplar, error) {
	query, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	candidates, err := r.store.List(ctx, interactionType)
	if err != nil {
		return nil, err
	}

	var scored []scoredExemplar
	for _, e := range candidates {
		if e.QualityScore < r.cfg.MinQuality {
			continue
		}
		d := CosineDistance(query, e.Embedding)
		if d > r.cfg.MaxDistance {
			continue
		}
		scored = append(scored, scoredExemplar{exemplar: e, distance: d})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].distance < scored[j].distance })
	if len(scored) > r.cfg.TopK {
		scored = scored[:r.cfg.TopK]
	}

	out := make([]models.Exemplar, len(scored))
	for i, s := range scored {
		out[i] = s.exemplar
	}
	return out, nil
}

// Persist folds a newly observed interaction into the store. If an
// existing exemplar of the same interaction type is within
// DuplicateDistance, its quality signals are updated in place (the
// incumbent absorbs the new observation) rather than inserting a near-twin
// that would otherwise violate the "no two exemplars >= SimilarityCeiling
// similar" invariant.
func (r *Retriever) Persist(ctx context.Context, e *models.Exemplar) error {
	if e.Embedding == nil {
		emb, err := r.embedder.Embed(ctx, e.InputContext)
		if err != nil {
			return err
		}
		e.Embedding = emb
	}
	if e.QualityScore == 0 {
		e.QualityScore = e.QualitySignals.Score()
	}

	candidates, err := r.store.List(ctx, e.InteractionType)
	if err != nil {
		return err
	}

	var nearest *models.Exemplar
	nearestDist := 2.0
	for i := range candidates {
		d := CosineDistance(e.Embedding, candidates[i].Embedding)
		if d < nearestDist {
			nearestDist = d
			nearest = &candidates[i]
		}
	}

	if nearest != nil && nearestDist <= r.cfg.DuplicateDistance {
		return r.store.UpdateScore(ctx, nearest.ID, e.QualitySignals, e.QualitySignals.Score())
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return r.store.Insert(ctx, e)
}
