package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hybridrag/config"
	"hybridrag/internal/adapter/analyzer"
	"hybridrag/internal/adapter/cache"
	"hybridrag/internal/adapter/embedding"
	"hybridrag/internal/adapter/index"
	"hybridrag/internal/adapter/retriever"
	"hybridrag/internal/adapter/store"
	"hybridrag/internal/domain"
	"hybridrag/internal/port"
)

// State describes the engine lifecycle: EMPTY until the first ingest, READY
// once at least one document is indexed, REBUILDING transiently while a
// document removal rebuilds the dense index.
type State int

const (
	StateEmpty State = iota
	StateReady
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// SearchRequest is one query against the engine.
type SearchRequest struct {
	Query    string
	TopK     int           // 0 means the configured default
	Alpha    *float64      // optional per-request fusion weight override
	Deadline time.Duration // optional budget; reranking is skipped once it passes
}

// SearchResponse is the ordered result list plus serving metadata.
type SearchResponse struct {
	Results []domain.SearchResult
	// NoDocuments distinguishes "nothing ingested yet" from "no matches".
	NoDocuments bool
	// Stale marks a response served from the pre-rebuild index during a
	// document removal.
	Stale    bool
	Reranked bool
	CacheHit bool
	Took     time.Duration
}

// IngestResult summarizes one ingest batch.
type IngestResult struct {
	ChunksIngested int
	Duplicates     int
}

// SearchEngine is the sole owner of both indices, the embedding cache and the
// query cache. All access goes through its methods; raw index references are
// never handed out.
type SearchEngine struct {
	cfg       *config.Config
	store     *store.BoltStore
	embedder  port.Embedder // cache-wrapped
	reranker  port.Reranker // nil disables reranking
	tokenizer *analyzer.Tokenizer
	queries   *cache.QueryCache

	mu     sync.RWMutex
	state  State
	dense  *index.DenseIndex
	sparse *index.SparseIndex
}

// NewSearchEngine opens an engine over the given store, reloading both
// indices from persisted chunks so that search results match the pre-shutdown
// ones exactly. A dimension disagreement between embedder and configuration,
// or a corrupt persisted index, stops startup.
func NewSearchEngine(st *store.BoltStore, embedder port.Embedder, reranker port.Reranker, cfg *config.Config) (*SearchEngine, error) {
	if embedder.Dimension() != cfg.Embedding.Dimension {
		return nil, fmt.Errorf("%w: config dimension %d, embedder %q dimension %d",
			domain.ErrDimensionMismatch, cfg.Embedding.Dimension, embedder.ModelName(), embedder.Dimension())
	}

	e := &SearchEngine{
		cfg:       cfg,
		store:     st,
		embedder:  embedding.NewCachedEmbedder(embedder, st),
		reranker:  reranker,
		tokenizer: analyzer.NewTokenizer(cfg.Index.Stemming),
		queries:   cache.NewQueryCache(cfg.Retrieve.CacheSize, time.Duration(cfg.Retrieve.CacheTTLSeconds)*time.Second),
		dense:     index.NewDenseIndex(cfg.Embedding.Dimension, index.Metric(cfg.Index.Metric)),
		sparse:    index.NewSparseIndex(cfg.Index.K1, cfg.Index.B),
	}

	err := st.ForEachChunk(func(chunk domain.Chunk, vector []float32) error {
		if vector == nil {
			return fmt.Errorf("chunk %s has no persisted vector", chunk.ID)
		}
		if err := e.dense.Add(chunk.ID, vector); err != nil {
			return err
		}
		e.sparse.Add(chunk.ID, chunk.Tokens)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	if e.sparse.Len() > 0 {
		e.state = StateReady
	}
	return e, nil
}

// State returns the current lifecycle state.
func (e *SearchEngine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Stats returns corpus statistics.
func (e *SearchEngine) Stats() (domain.Stats, error) {
	return e.store.GetStats()
}

// Close releases the underlying store.
func (e *SearchEngine) Close() error {
	return e.store.Close()
}

// Ingest embeds the chunks and adds them to both indices. Chunks without an
// ID get one assigned. Chunk IDs already indexed are rejected as duplicates
// and skipped, so re-ingesting the same set leaves rankings unchanged. A
// provider failure aborts the whole batch before anything is written.
func (e *SearchEngine) Ingest(ctx context.Context, chunks []domain.Chunk) (*IngestResult, error) {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()
	if state == StateRebuilding {
		return nil, fmt.Errorf("cannot ingest while rebuilding")
	}

	result := &IngestResult{}
	seen := make(map[string]struct{}, len(chunks))
	fresh := make([]domain.Chunk, 0, len(chunks))

	for i, chunk := range chunks {
		if chunk.Text == "" {
			return nil, fmt.Errorf("chunk %d has empty text", i)
		}
		if chunk.ID == "" {
			chunk.ID = uuid.NewString()
		}
		if chunk.SourceType == "" {
			chunk.SourceType = "document"
		}
		if _, dup := seen[chunk.ID]; dup {
			result.Duplicates++
			continue
		}
		seen[chunk.ID] = struct{}{}

		exists, err := e.store.HasChunk(chunk.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Duplicates++
			continue
		}

		chunk.Tokens = e.tokenizer.Tokenize(chunk.Text)
		fresh = append(fresh, chunk)
	}

	if len(fresh) == 0 {
		return result, nil
	}

	texts := make([]string, len(fresh))
	for i, chunk := range fresh {
		texts[i] = chunk.Text
	}

	// Suspension point: the only network call on the ingest path.
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}
	for i, vector := range vectors {
		if len(vector) != e.cfg.Embedding.Dimension {
			return nil, fmt.Errorf("%w: chunk %s embedded to dimension %d, index dimension %d",
				domain.ErrDimensionMismatch, fresh[i].ID, len(vector), e.cfg.Embedding.Dimension)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRebuilding {
		return nil, fmt.Errorf("cannot ingest while rebuilding")
	}

	if err := e.store.PutChunks(fresh, vectors); err != nil {
		return nil, fmt.Errorf("failed to persist chunks: %w", err)
	}
	for i, chunk := range fresh {
		if err := e.dense.Add(chunk.ID, vectors[i]); err != nil {
			return nil, err
		}
		e.sparse.Add(chunk.ID, chunk.Tokens)
	}

	if err := e.refreshStatsLocked(); err != nil {
		return nil, err
	}

	e.state = StateReady
	e.queries.Invalidate()

	result.ChunksIngested = len(fresh)
	return result, nil
}

// Query runs the full pipeline: embed, concurrent dense+sparse retrieval,
// fusion, then cross-encoder reranking over the top fused candidates. When
// the reranker is absent, fails, or the deadline has already passed,
// fusion-only ranking is returned instead. An empty engine answers with an
// explicit no-documents response, never an error.
func (e *SearchEngine) Query(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if req.Query == "" {
		return nil, fmt.Errorf("empty query")
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.Retrieve.TopK
	}
	alpha := e.cfg.Retrieve.Alpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha must be in [0,1], got %g", alpha)
	}

	e.mu.RLock()
	state := e.state
	dense := e.dense
	sparse := e.sparse
	e.mu.RUnlock()

	if state == StateEmpty {
		return &SearchResponse{NoDocuments: true, Took: time.Since(start)}, nil
	}

	if results, hit := e.queries.Get(req.Query, topK, alpha); hit {
		// Cached results predate the rebuild too; carry the marker.
		return &SearchResponse{
			Results:  results,
			CacheHit: true,
			Stale:    state == StateRebuilding,
			Took:     time.Since(start),
		}, nil
	}

	if req.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Deadline)
		defer cancel()
	}

	pool := e.cfg.Retrieve.CandidatePool
	if pool < topK {
		pool = topK
	}
	if pool < e.cfg.Retrieve.RerankTopN {
		pool = e.cfg.Retrieve.RerankTopN
	}

	// Suspension point: query embedding crosses the network.
	queryVectors, err := e.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Dense and sparse retrieval are independent; run them concurrently.
	// Fusion waits for both.
	var denseResults, sparseResults []domain.Candidate
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		denseResults, err = dense.Search(queryVectors[0], pool)
		return err
	})
	g.Go(func() error {
		sparseResults = sparse.Search(e.tokenizer.Tokenize(req.Query), pool)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := retriever.Fuse(denseResults, sparseResults, alpha)

	rerankN := e.cfg.Retrieve.RerankTopN
	if rerankN > len(fused) {
		rerankN = len(fused)
	}
	candidates := fused[:rerankN]

	results, reranked := e.rerank(ctx, req.Query, candidates)
	if len(results) > topK {
		results = results[:topK]
	}

	e.queries.Put(req.Query, topK, alpha, results)

	return &SearchResponse{
		Results:  results,
		Stale:    state == StateRebuilding,
		Reranked: reranked,
		Took:     time.Since(start),
	}, nil
}

// rerank scores the fused candidates with the cross-encoder and replaces
// their fusion scores. Falls back to fusion ordering when reranking is
// unavailable, out of budget, or failing.
func (e *SearchEngine) rerank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.SearchResult, bool) {
	chunks := make([]domain.Chunk, 0, len(candidates))
	scores := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		chunk, err := e.store.GetChunk(c.ChunkID)
		if err != nil {
			continue
		}
		chunks = append(chunks, chunk)
		scores = append(scores, c.Score)
	}

	if e.reranker == nil || len(chunks) == 0 || deadlineExceeded(ctx) {
		return toResults(chunks, scores), false
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	// Suspension point: the cross-encoder call is the most expensive stage.
	reranked, err := e.reranker.Rerank(ctx, query, texts)
	if err != nil {
		// Reranker failure degrades to fusion-only ranking.
		return toResults(chunks, scores), false
	}

	results := make([]domain.SearchResult, 0, len(reranked))
	seen := make(map[int]struct{}, len(reranked))
	for _, r := range reranked {
		if r.Index < 0 || r.Index >= len(chunks) {
			continue
		}
		// A backend may echo an index twice; each chunk appears once.
		if _, dup := seen[r.Index]; dup {
			continue
		}
		seen[r.Index] = struct{}{}
		results = append(results, toResult(chunks[r.Index], r.Score))
	}
	return results, true
}

// Delete removes a document. The engine enters REBUILDING, constructs fresh
// indices from the surviving chunks off to the side, then swaps them in
// atomically; queries keep being served from the old indices (flagged stale)
// for the whole window.
func (e *SearchEngine) Delete(ctx context.Context, docID string) error {
	exists, err := e.store.HasDoc(docID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("document not found: %s", docID)
	}

	e.mu.Lock()
	if e.state == StateRebuilding {
		e.mu.Unlock()
		return fmt.Errorf("rebuild already in progress")
	}
	e.state = StateRebuilding
	e.mu.Unlock()

	restored := false
	defer func() {
		if !restored {
			e.mu.Lock()
			e.state = StateReady
			e.mu.Unlock()
		}
	}()

	newDense := index.NewDenseIndex(e.cfg.Embedding.Dimension, index.Metric(e.cfg.Index.Metric))
	newSparse := index.NewSparseIndex(e.cfg.Index.K1, e.cfg.Index.B)

	err = e.store.ForEachChunk(func(chunk domain.Chunk, vector []float32) error {
		if chunk.DocumentID == docID {
			return nil
		}
		if vector == nil {
			// Vector lost from the store; recompute through the embedding
			// cache, which makes the rebuild cheap for unchanged text.
			vectors, err := e.embedder.Embed(ctx, []string{chunk.Text})
			if err != nil {
				return err
			}
			vector = vectors[0]
		}
		if err := newDense.Add(chunk.ID, vector); err != nil {
			return err
		}
		newSparse.Add(chunk.ID, chunk.Tokens)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	if err := e.store.DeleteDoc(docID); err != nil {
		return err
	}

	e.mu.Lock()
	e.dense = newDense
	e.sparse = newSparse
	if newSparse.Len() == 0 {
		e.state = StateEmpty
	} else {
		e.state = StateReady
	}
	err = e.refreshStatsLocked()
	e.mu.Unlock()
	restored = true

	e.queries.Invalidate()
	return err
}

// refreshStatsLocked recomputes corpus stats from the store. Caller holds the
// write lock.
func (e *SearchEngine) refreshStatsLocked() error {
	docIDs, err := e.store.ListDocIDs()
	if err != nil {
		return err
	}

	totalChunks := 0
	totalTokens := 0
	err = e.store.ForEachChunk(func(chunk domain.Chunk, _ []float32) error {
		totalChunks++
		totalTokens += len(chunk.Tokens)
		return nil
	})
	if err != nil {
		return err
	}

	avg := 0.0
	if totalChunks > 0 {
		avg = float64(totalTokens) / float64(totalChunks)
	}
	return e.store.UpdateStats(domain.Stats{
		TotalDocs:   len(docIDs),
		TotalChunks: totalChunks,
		AvgChunkLen: avg,
	})
}

func toResults(chunks []domain.Chunk, scores []float64) []domain.SearchResult {
	results := make([]domain.SearchResult, len(chunks))
	for i, chunk := range chunks {
		results[i] = toResult(chunk, scores[i])
	}
	return results
}

func toResult(chunk domain.Chunk, score float64) domain.SearchResult {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return domain.SearchResult{
		ChunkID:    chunk.ID,
		DocumentID: chunk.DocumentID,
		SourceType: chunk.SourceType,
		Page:       chunk.Page,
		Text:       chunk.Text,
		Score:      score,
	}
}

func deadlineExceeded(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	deadline, ok := ctx.Deadline()
	return ok && time.Until(deadline) <= 0
}
