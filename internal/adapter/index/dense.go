package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"hybridrag/internal/domain"
)

// Metric selects the distance function for the dense index.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// DenseEntry is one (chunk ID, vector) pair, used for rebuilds.
type DenseEntry struct {
	ChunkID string
	Vector  []float32
}

// DenseIndex is a flat vector index over 32-bit float embeddings. Rows are
// append-only and stable for the lifetime of the index; there is no true
// delete — removing a document means building a fresh index from the
// surviving entries and swapping it in atomically at the engine level.
//
// Search is a brute-force scan. At the target corpus size this is fast enough
// and trivially exact; the structure can be replaced with an ANN graph later
// without touching callers.
type DenseIndex struct {
	mu        sync.RWMutex
	dimension int
	metric    Metric
	ids       []string // row -> chunk ID
	rows      [][]float32
	byID      map[string]int
}

// NewDenseIndex creates an empty dense index with a fixed dimension.
func NewDenseIndex(dimension int, metric Metric) *DenseIndex {
	if metric == "" {
		metric = MetricCosine
	}
	return &DenseIndex{
		dimension: dimension,
		metric:    metric,
		byID:      make(map[string]int),
	}
}

// BuildDenseIndex constructs a fresh index from a full entry set. Used for
// the rebuild path: the new index is populated off to the side while the old
// one keeps serving queries, then swapped in.
func BuildDenseIndex(dimension int, metric Metric, entries []DenseEntry) (*DenseIndex, error) {
	idx := NewDenseIndex(dimension, metric)
	for _, e := range entries {
		if err := idx.Add(e.ChunkID, e.Vector); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Add appends one vector. The vector's length must equal the configured
// dimension. Re-adding an existing chunk ID overwrites its vector in place so
// the row ID stays stable.
func (x *DenseIndex) Add(chunkID string, vector []float32) error {
	if len(vector) != x.dimension {
		return fmt.Errorf("%w: index dimension %d, vector dimension %d",
			domain.ErrDimensionMismatch, x.dimension, len(vector))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if row, exists := x.byID[chunkID]; exists {
		x.rows[row] = vector
		return nil
	}

	x.byID[chunkID] = len(x.rows)
	x.ids = append(x.ids, chunkID)
	x.rows = append(x.rows, vector)
	return nil
}

// Search returns up to k nearest neighbors as (chunk ID, similarity) pairs,
// similarity being 1 - normalized distance in [0,1]. Ties are broken by
// insertion order. An empty index yields an empty result, not an error.
func (x *DenseIndex) Search(query []float32, k int) ([]domain.Candidate, error) {
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: index dimension %d, query dimension %d",
			domain.ErrDimensionMismatch, x.dimension, len(query))
	}
	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.rows) == 0 {
		return nil, nil
	}

	type scoredRow struct {
		row   int
		score float64
	}

	scored := make([]scoredRow, len(x.rows))
	for i, row := range x.rows {
		scored[i] = scoredRow{row: i, score: x.similarity(query, row)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].row < scored[j].row
	})

	if k > len(scored) {
		k = len(scored)
	}

	results := make([]domain.Candidate, k)
	for i := 0; i < k; i++ {
		results[i] = domain.Candidate{
			ChunkID: x.ids[scored[i].row],
			Score:   scored[i].score,
		}
	}
	return results, nil
}

// Len returns the number of indexed vectors.
func (x *DenseIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.rows)
}

// Contains reports whether a chunk ID is indexed.
func (x *DenseIndex) Contains(chunkID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.byID[chunkID]
	return ok
}

// similarity converts the configured metric's distance into a similarity in
// [0,1]: cosine distance is halved into [0,1], L2 is squashed by d/(1+d);
// both are clamped before the 1-d conversion.
func (x *DenseIndex) similarity(a, b []float32) float64 {
	var distance float64
	switch x.metric {
	case MetricL2:
		d := l2Distance(a, b)
		distance = d / (1 + d)
	default:
		distance = (1 - cosineSimilarity(a, b)) / 2
	}
	return 1 - clamp01(distance)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
