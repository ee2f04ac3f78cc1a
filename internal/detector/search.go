package detector

import (
	"context"

	"github.com/repomemory/dupcore/internal/types"
	"github.com/repomemory/dupcore/internal/vectormath"
)

// Search embeds query via EmbedText (the diff embedder is not used),
// delegates to the same candidate retrieval path a check uses, and
// hydrates each hit from the in-memory mirror, falling through to
// storage.Get when a record isn't mirrored.
func (d *Detector) Search(ctx context.Context, query string, k int) ([]types.SearchHit, error) {
	if k <= 0 {
		k = d.cfg.MaxCandidates
	}

	queryVec, err := d.textCache.GetOrCompute(query, func() ([]float64, error) {
		return d.callEmbedder(ctx, d.cfg.Embedder.EmbedText, query)
	})
	if err != nil {
		return nil, err
	}

	ids := d.retrieveCandidatesK(ctx, queryVec, k)

	hits := make([]types.SearchHit, 0, len(ids))
	for _, id := range ids {
		rec := d.hydrate(id)
		if rec == nil {
			continue
		}
		score := vectormath.Cosine(queryVec, rec.TextEmbedding)
		hits = append(hits, types.SearchHit{
			ID:          rec.ID,
			Score:       score,
			Title:       rec.Title,
			Description: rec.Description,
			CreatedAt:   rec.CreatedAt,
			Files:       rec.Files,
		})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

// retrieveCandidatesK is retrieveCandidates parameterized by an
// explicit k, used by Search so it isn't bound to MaxCandidates.
func (d *Detector) retrieveCandidatesK(ctx context.Context, queryVec []float64, k int) []int64 {
	if d.cfg.Storage != nil {
		hits, err := d.cfg.Storage.Search(ctx, queryVec, k)
		if err == nil {
			ids := make([]int64, len(hits))
			for i, h := range hits {
				ids[i] = h.ID
			}
			return ids
		}
	}
	return d.scanMirror(queryVec, k)
}
