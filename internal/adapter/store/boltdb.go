package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"hybridrag/internal/domain"
)

var (
	bucketChunks     = []byte("chunks")
	bucketBlobs      = []byte("blobs")
	bucketDocChunks  = []byte("doc_chunks")
	bucketVectors    = []byte("vectors")
	bucketStats      = []byte("stats")
	bucketEmbedCache = []byte("embed_cache")
	keyStats         = []byte("corpus_stats")
)

// BoltStore persists chunks, embedding vectors, corpus stats and the
// embedding cache. The in-memory indices are rebuilt from it on startup, so a
// reloaded store must return search results identical to pre-shutdown ones.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketChunks, bucketBlobs, bucketDocChunks, bucketVectors, bucketStats, bucketEmbedCache}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

type chunkMeta struct {
	DocumentID string   `json:"document_id"`
	SourceType string   `json:"source_type,omitempty"`
	Page       int      `json:"page,omitempty"`
	Tokens     []string `json:"tokens"`
}

// PutChunks writes a batch of chunks and their vectors in one transaction.
// Vector entries may be nil for chunks whose embedding is stored separately.
func (s *BoltStore) PutChunks(chunks []domain.Chunk, vectors [][]float32) error {
	if len(vectors) != 0 && len(vectors) != len(chunks) {
		return fmt.Errorf("vector count %d does not match chunk count %d", len(vectors), len(chunks))
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		docBucket := tx.Bucket(bucketDocChunks)
		vecBucket := tx.Bucket(bucketVectors)

		docAdds := make(map[string][]string)

		for i, chunk := range chunks {
			meta := chunkMeta{
				DocumentID: chunk.DocumentID,
				SourceType: chunk.SourceType,
				Page:       chunk.Page,
				Tokens:     chunk.Tokens,
			}
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			if err := chunkBucket.Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			if err := blobBucket.Put([]byte(chunk.ID), []byte(chunk.Text)); err != nil {
				return err
			}
			if len(vectors) != 0 && vectors[i] != nil {
				vecData, err := json.Marshal(vectors[i])
				if err != nil {
					return err
				}
				if err := vecBucket.Put([]byte(chunk.ID), vecData); err != nil {
					return err
				}
			}
			docAdds[chunk.DocumentID] = append(docAdds[chunk.DocumentID], chunk.ID)
		}

		for docID, ids := range docAdds {
			var existing []string
			if data := docBucket.Get([]byte(docID)); data != nil {
				json.Unmarshal(data, &existing)
			}
			existing = append(existing, ids...)
			data, err := json.Marshal(existing)
			if err != nil {
				return err
			}
			if err := docBucket.Put([]byte(docID), data); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("chunk not found: %s", id)
		}
		var meta chunkMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		text := tx.Bucket(bucketBlobs).Get([]byte(id))
		chunk = domain.Chunk{
			ID:         id,
			DocumentID: meta.DocumentID,
			SourceType: meta.SourceType,
			Page:       meta.Page,
			Tokens:     meta.Tokens,
			Text:       string(text),
		}
		return nil
	})
	return chunk, err
}

// HasChunk reports whether a chunk ID is already stored.
func (s *BoltStore) HasChunk(id string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketChunks).Get([]byte(id)) != nil
		return nil
	})
	return found, err
}

// ForEachChunk iterates over every stored chunk together with its persisted
// vector (nil when absent). Used to rebuild the in-memory indices.
func (s *BoltStore) ForEachChunk(fn func(chunk domain.Chunk, vector []float32) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		vecBucket := tx.Bucket(bucketVectors)

		return chunkBucket.ForEach(func(k, v []byte) error {
			var meta chunkMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("corrupt chunk record %s: %w", k, err)
			}
			text := blobBucket.Get(k)

			var vector []float32
			if vecData := vecBucket.Get(k); vecData != nil {
				if err := json.Unmarshal(vecData, &vector); err != nil {
					return fmt.Errorf("corrupt vector record %s: %w", k, err)
				}
			}

			chunk := domain.Chunk{
				ID:         string(k),
				DocumentID: meta.DocumentID,
				SourceType: meta.SourceType,
				Page:       meta.Page,
				Tokens:     meta.Tokens,
				Text:       string(text),
			}
			return fn(chunk, vector)
		})
	})
}

func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocChunks).Get([]byte(docID))
		if data == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		for _, id := range ids {
			data := chunkBucket.Get([]byte(id))
			if data == nil {
				continue
			}
			var meta chunkMeta
			if err := json.Unmarshal(data, &meta); err != nil {
				continue
			}
			text := blobBucket.Get([]byte(id))
			chunks = append(chunks, domain.Chunk{
				ID:         id,
				DocumentID: meta.DocumentID,
				SourceType: meta.SourceType,
				Page:       meta.Page,
				Tokens:     meta.Tokens,
				Text:       string(text),
			})
		}
		return nil
	})
	return chunks, err
}

// DeleteDoc removes a document's chunks, blobs and vectors.
func (s *BoltStore) DeleteDoc(docID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docBucket := tx.Bucket(bucketDocChunks)
		data := docBucket.Get([]byte(docID))
		if data == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		vecBucket := tx.Bucket(bucketVectors)
		for _, id := range ids {
			chunkBucket.Delete([]byte(id))
			blobBucket.Delete([]byte(id))
			vecBucket.Delete([]byte(id))
		}
		return docBucket.Delete([]byte(docID))
	})
}

func (s *BoltStore) ListDocIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocChunks).ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (s *BoltStore) HasDoc(docID string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketDocChunks).Get([]byte(docID)) != nil
		return nil
	})
	return found, err
}

// GetVector returns the persisted embedding for a chunk, or nil if absent.
func (s *BoltStore) GetVector(chunkID string) ([]float32, error) {
	var vector []float32
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketVectors).Get([]byte(chunkID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &vector)
	})
	return vector, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltStore) UpdateStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put(keyStats, data)
	})
}

// GetEmbedding looks up a cached embedding by content hash.
func (s *BoltStore) GetEmbedding(key string) ([]float32, bool, error) {
	var vector []float32
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbedCache).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &vector); err != nil {
			return err
		}
		found = true
		return nil
	})
	return vector, found, err
}

// PutEmbedding stores an embedding under its content hash. The cache has no
// eviction; unbounded growth is acceptable at the target scale.
func (s *BoltStore) PutEmbedding(key string, vector []float32) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(vector)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketEmbedCache).Put([]byte(key), data)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
