package embedding

import (
	"context"
	"testing"
)

// countingEmbedder records how many texts reached the backend.
type countingEmbedder struct {
	dimension int
	calls     int
	embedded  int
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.embedded += len(texts)
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = make([]float32, e.dimension)
		for j, r := range text {
			vectors[i][j%e.dimension] += float32(r)
		}
	}
	return vectors, nil
}

func (e *countingEmbedder) Dimension() int    { return e.dimension }
func (e *countingEmbedder) ModelName() string { return "counting" }

// memCache is an in-memory CacheStore.
type memCache struct {
	entries map[string][]float32
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]float32)}
}

func (c *memCache) GetEmbedding(key string) ([]float32, bool, error) {
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) PutEmbedding(key string, vector []float32) error {
	c.entries[key] = vector
	return nil
}

func TestCachedEmbedderHitSkipsBackend(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	cached := NewCachedEmbedder(inner, newMemCache())
	ctx := context.Background()

	first, err := cached.Embed(ctx, []string{"hello", "world"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.embedded != 2 {
		t.Fatalf("expected 2 backend embeddings, got %d", inner.embedded)
	}

	second, err := cached.Embed(ctx, []string{"hello", "world"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.embedded != 2 {
		t.Errorf("expected no further backend calls on full hit, got %d embeddings", inner.embedded)
	}

	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("cached vector differs at [%d][%d]", i, j)
			}
		}
	}
}

func TestCachedEmbedderPartialMiss(t *testing.T) {
	inner := &countingEmbedder{dimension: 4}
	cached := NewCachedEmbedder(inner, newMemCache())
	ctx := context.Background()

	if _, err := cached.Embed(ctx, []string{"hello"}); err != nil {
		t.Fatal(err)
	}

	vectors, err := cached.Embed(ctx, []string{"hello", "fresh"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	// only the miss reached the backend
	if inner.embedded != 2 {
		t.Errorf("expected 2 total backend embeddings, got %d", inner.embedded)
	}
	for i, v := range vectors {
		if len(v) != 4 {
			t.Errorf("vector %d has dimension %d, want 4", i, len(v))
		}
	}
}

func TestCachedEmbedderKeyIncludesModel(t *testing.T) {
	cache := newMemCache()
	ctx := context.Background()

	a := NewCachedEmbedder(&countingEmbedder{dimension: 4}, cache)
	if _, err := a.Embed(ctx, []string{"shared text"}); err != nil {
		t.Fatal(err)
	}

	other := &MockEmbedder{dimension: 4}
	b := NewCachedEmbedder(other, cache)
	if _, err := b.Embed(ctx, []string{"shared text"}); err != nil {
		t.Fatal(err)
	}

	if len(cache.entries) != 2 {
		t.Errorf("expected distinct cache keys per model, got %d entries", len(cache.entries))
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"same input"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, []string{"same input"})
	if err != nil {
		t.Fatal(err)
	}

	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("mock embedder not deterministic at %d", i)
		}
	}
	if len(a[0]) != 8 {
		t.Errorf("expected dimension 8, got %d", len(a[0]))
	}
}
