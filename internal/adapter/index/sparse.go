package index

import (
	"math"
	"sort"
	"sync"

	"hybridrag/internal/domain"
)

type posting struct {
	row int
	tf  int
}

// SparseIndex is an in-memory inverted index ranked with BM25. It is built
// incrementally at ingest time and rebuilt from the store on startup and
// after document removal. Raw BM25 scores are unbounded; min-max
// normalization to [0,1] happens per query batch at the fusion stage.
type SparseIndex struct {
	mu       sync.RWMutex
	k1       float64
	b        float64
	postings map[string][]posting
	ids      []string // row -> chunk ID
	lengths  []int
	byID     map[string]int
	totalLen int
}

// NewSparseIndex creates an empty sparse index with BM25 parameters.
func NewSparseIndex(k1, b float64) *SparseIndex {
	if k1 <= 0 {
		k1 = 1.2
	}
	if b < 0 || b > 1 {
		b = 0.75
	}
	return &SparseIndex{
		k1:       k1,
		b:        b,
		postings: make(map[string][]posting),
		byID:     make(map[string]int),
	}
}

// Add indexes one chunk's tokens. Re-adding an existing chunk ID is a no-op;
// the engine rejects duplicate chunks before they reach the index.
func (x *SparseIndex) Add(chunkID string, tokens []string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.byID[chunkID]; exists {
		return
	}

	row := len(x.ids)
	x.byID[chunkID] = row
	x.ids = append(x.ids, chunkID)
	x.lengths = append(x.lengths, len(tokens))
	x.totalLen += len(tokens)

	tf := make(map[string]int, len(tokens))
	for _, token := range tokens {
		tf[token]++
	}
	for term, count := range tf {
		x.postings[term] = append(x.postings[term], posting{row: row, tf: count})
	}
}

// Search ranks chunks by BM25 against the query tokens and returns up to k
// results, ordered by score descending with chunk-ID ties broken
// lexicographically. An empty query or no term overlap yields an empty
// result.
func (x *SparseIndex) Search(queryTokens []string, k int) []domain.Candidate {
	if len(queryTokens) == 0 || k <= 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.ids)
	if n == 0 {
		return nil
	}

	avgLen := float64(x.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[int]float64)
	for _, term := range queryTokens {
		postings, ok := x.postings[term]
		if !ok {
			continue
		}

		df := float64(len(postings))
		idf := math.Log((float64(n)-df+0.5)/(df+0.5) + 1)

		for _, p := range postings {
			tf := float64(p.tf)
			dl := float64(x.lengths[p.row])
			scores[p.row] += idf * (tf * (x.k1 + 1)) / (tf + x.k1*(1-x.b+x.b*dl/avgLen))
		}
	}

	if len(scores) == 0 {
		return nil
	}

	results := make([]domain.Candidate, 0, len(scores))
	for row, score := range scores {
		results = append(results, domain.Candidate{ChunkID: x.ids[row], Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Len returns the number of indexed chunks.
func (x *SparseIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}
