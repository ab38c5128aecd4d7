package retriever

import (
	"sort"

	"hybridrag/internal/domain"
)

// Fuse merges dense and sparse result lists into one ranked list using a
// weighted linear combination of normalized scores:
//
//	combined = alpha*dense + (1-alpha)*sparse
//
// The sparse batch is min-max normalized to [0,1] first; dense scores arrive
// already normalized. A chunk found by only one side keeps the other side's
// score at 0 — it is never excluded for lacking a second hit. Equal combined
// scores are ordered by chunk ID so output is reproducible. alpha=1 is pure
// dense ordering, alpha=0 pure sparse.
func Fuse(dense, sparse []domain.Candidate, alpha float64) []domain.Candidate {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	sparse = NormalizeMinMax(sparse)

	combined := make(map[string]float64, len(dense)+len(sparse))
	for _, c := range dense {
		combined[c.ChunkID] += alpha * c.Score
	}
	for _, c := range sparse {
		combined[c.ChunkID] += (1 - alpha) * c.Score
	}

	fused := make([]domain.Candidate, 0, len(combined))
	for id, score := range combined {
		fused = append(fused, domain.Candidate{ChunkID: id, Score: score})
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ChunkID < fused[j].ChunkID
	})

	return fused
}

// NormalizeMinMax rescales a result batch to [0,1] within the batch. When
// all scores are equal the batch collapses to 1.0 (the chunks matched and
// are indistinguishable by score). Normalization is monotonic, so ranking
// order is preserved.
func NormalizeMinMax(results []domain.Candidate) []domain.Candidate {
	if len(results) == 0 {
		return nil
	}

	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}

	normalized := make([]domain.Candidate, len(results))
	for i, r := range results {
		score := 1.0
		if max > min {
			score = (r.Score - min) / (max - min)
		}
		normalized[i] = domain.Candidate{ChunkID: r.ChunkID, Score: score}
	}
	return normalized
}
