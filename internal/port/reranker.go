package port

import "context"

// Reranker scores query-document pairs for relevance. Unlike first-stage
// retrieval it considers query and document jointly, so it is applied only to
// a small candidate set.
type Reranker interface {
	// Rerank scores the (query, text) pairs and returns results sorted by
	// relevance, highest first. Pairs the backend fails to score are omitted
	// from the output rather than failing the call.
	Rerank(ctx context.Context, query string, texts []string) ([]RerankedResult, error)

	// ModelName returns the name of the reranking model.
	ModelName() string
}

// RerankedResult references an input text by its original index.
type RerankedResult struct {
	Index int     // Original index in the input slice
	Score float64 // Relevance score (higher is better)
}
