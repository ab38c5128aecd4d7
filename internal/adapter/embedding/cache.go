package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"hybridrag/internal/port"
)

// CacheStore is the persistence surface the cached embedder needs. The bbolt
// store satisfies it.
type CacheStore interface {
	GetEmbedding(key string) ([]float32, bool, error)
	PutEmbedding(key string, vector []float32) error
}

// CachedEmbedder decorates an Embedder with a content-addressed cache: the
// key is a hash of model name and exact input text, so a cache hit returns
// the previously computed vector without calling the backend. The cache
// never evicts; unbounded growth is a documented limitation at this scale.
type CachedEmbedder struct {
	inner port.Embedder
	cache CacheStore
}

func NewCachedEmbedder(inner port.Embedder, cache CacheStore) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed returns cached vectors where available and calls the backend only
// for the misses, writing those back to the cache on success.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		vector, found, err := e.cache.GetEmbedding(e.key(text))
		if err != nil {
			return nil, err
		}
		if found {
			vectors[i] = vector
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fresh, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, vector := range fresh {
		i := missIdx[j]
		vectors[i] = vector
		if err := e.cache.PutEmbedding(e.key(texts[i]), vector); err != nil {
			return nil, err
		}
	}

	return vectors, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.inner.ModelName()
}

// key derives the cache key from the model identity and the exact input
// text. Changing models never reuses another model's vectors.
func (e *CachedEmbedder) key(text string) string {
	h := sha256.New()
	h.Write([]byte(e.inner.ModelName()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
