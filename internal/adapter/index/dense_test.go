package index

import (
	"errors"
	"testing"

	"hybridrag/internal/domain"
)

func TestDenseIndexSearch(t *testing.T) {
	idx := NewDenseIndex(3, MetricCosine)

	vectors := map[string][]float32{
		"apple":  {0.9, 0.1, 0.0},
		"banana": {0.8, 0.2, 0.0},
		"car":    {0.0, 0.0, 1.0},
	}
	for id, v := range vectors {
		if err := idx.Add(id, v); err != nil {
			t.Fatal(err)
		}
	}

	results, err := idx.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	if results[0].ChunkID != "apple" {
		t.Errorf("expected apple first, got %s", results[0].ChunkID)
	}
	if results[1].ChunkID != "banana" {
		t.Errorf("expected banana second, got %s", results[1].ChunkID)
	}
	if results[2].ChunkID != "car" {
		t.Errorf("expected car last, got %s", results[2].ChunkID)
	}

	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score out of [0,1]: %s=%f", r.ChunkID, r.Score)
		}
	}
	if results[0].Score <= results[2].Score {
		t.Error("expected higher similarity for the closer vector")
	}
}

func TestDenseIndexDimensionMismatch(t *testing.T) {
	idx := NewDenseIndex(3, MetricCosine)

	if err := idx.Add("c1", []float32{1, 0}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on Add, got %v", err)
	}

	if err := idx.Add("c1", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Search([]float32{1, 0, 0, 0}, 5); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on Search, got %v", err)
	}
}

func TestDenseIndexEmpty(t *testing.T) {
	idx := NewDenseIndex(3, MetricCosine)

	results, err := idx.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results from empty index, got %d", len(results))
	}
}

func TestDenseIndexTiesByInsertionOrder(t *testing.T) {
	idx := NewDenseIndex(2, MetricCosine)

	// Identical vectors score identically; insertion order decides.
	idx.Add("later", []float32{1, 1})
	idx.Add("alpha", []float32{1, 1})

	results, err := idx.Search([]float32{1, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ChunkID != "later" {
		t.Errorf("expected first-inserted chunk to win the tie, got %s", results[0].ChunkID)
	}
	if results[0].Score != results[1].Score {
		t.Errorf("expected equal scores, got %f vs %f", results[0].Score, results[1].Score)
	}
}

func TestDenseIndexReAddOverwrites(t *testing.T) {
	idx := NewDenseIndex(2, MetricCosine)

	idx.Add("c1", []float32{1, 0})
	idx.Add("c1", []float32{0, 1})

	if idx.Len() != 1 {
		t.Fatalf("expected 1 row after re-add, got %d", idx.Len())
	}

	results, err := idx.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Score < 0.99 {
		t.Errorf("expected the overwritten vector to match the query, score %f", results[0].Score)
	}
}

func TestDenseIndexL2Metric(t *testing.T) {
	idx := NewDenseIndex(2, MetricL2)

	idx.Add("near", []float32{1, 1})
	idx.Add("far", []float32{10, 10})

	results, err := idx.Search([]float32{1, 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ChunkID != "near" {
		t.Errorf("expected the closer vector first, got %s", results[0].ChunkID)
	}
	if results[0].Score != 1.0 {
		t.Errorf("expected exact match to score 1.0, got %f", results[0].Score)
	}
	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score out of [0,1]: %s=%f", r.ChunkID, r.Score)
		}
	}
}

func TestBuildDenseIndex(t *testing.T) {
	entries := []DenseEntry{
		{ChunkID: "c1", Vector: []float32{1, 0}},
		{ChunkID: "c2", Vector: []float32{0, 1}},
	}

	idx, err := BuildDenseIndex(2, MetricCosine, entries)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", idx.Len())
	}
	if !idx.Contains("c1") || !idx.Contains("c2") {
		t.Error("expected both chunks to be indexed")
	}

	entries = append(entries, DenseEntry{ChunkID: "bad", Vector: []float32{1}})
	if _, err := BuildDenseIndex(2, MetricCosine, entries); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
