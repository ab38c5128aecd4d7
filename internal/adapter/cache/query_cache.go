package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"hybridrag/internal/domain"
)

// QueryCache memoizes search responses keyed by (query, topK, alpha). Entries
// expire by TTL and are invalidated wholesale whenever the indices change,
// via a generation counter bumped on every ingest or document removal.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
}

type cacheEntry struct {
	results   []domain.SearchResult
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, topK int, alpha float64) string {
	data := []byte(query)
	data = append(data, byte(topK>>8), byte(topK))
	var alphaBits [8]byte
	binary.BigEndian.PutUint64(alphaBits[:], math.Float64bits(alpha))
	data = append(data, alphaBits[:]...)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get holds the write lock for the whole lookup: a hit touches the LRU order,
// and deciding hit-or-miss under a separate read lock would let a concurrent
// Invalidate slip between the check and the touch.
func (c *QueryCache) Get(query string, topK int, alpha float64) ([]domain.SearchResult, bool) {
	key := cacheKey(query, topK, alpha)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return entry.results, true
}

func (c *QueryCache) Put(query string, topK int, alpha float64, results []domain.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, topK, alpha)
	entry := &cacheEntry{
		results:   results,
		timestamp: time.Now(),
		indexGen:  c.indexGen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate drops every entry and advances the index generation.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
