package domain

// Chunk is the minimal retrievable unit of source text. Chunks arrive from an
// external document-processing pipeline with a stable ID and non-empty text;
// they are immutable once ingested.
type Chunk struct {
	ID         string
	DocumentID string
	SourceType string
	Page       int
	Text       string
	Tokens     []string
}

// Candidate is a scored reference to a chunk, produced by the dense and sparse
// indices and consumed by fusion and reranking.
type Candidate struct {
	ChunkID string
	Score   float64
}

// SearchResult is the final output record returned to callers.
type SearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	SourceType string  `json:"source_type"`
	Page       int     `json:"page,omitempty"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Stats describes the indexed corpus.
type Stats struct {
	TotalDocs   int     `json:"total_docs"`
	TotalChunks int     `json:"total_chunks"`
	AvgChunkLen float64 `json:"avg_chunk_len"`
}
