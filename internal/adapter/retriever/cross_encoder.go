package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"hybridrag/internal/domain"
	"hybridrag/internal/port"
)

// CohereReranker scores (query, document) pairs jointly with Cohere's
// cross-encoder rerank API.
type CohereReranker struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type cohereRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n,omitempty"`
}

type cohereRerankResponse struct {
	Results []cohereRerankResult `json:"results"`
}

type cohereRerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// NewCohereReranker creates a reranker reading its API key from the named
// environment variable.
func NewCohereReranker(apiKeyEnv, model string) (*CohereReranker, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	if model == "" {
		model = "rerank-english-v3.0"
	}

	return &CohereReranker{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.cohere.ai/v1",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// SetBaseURL overrides the API endpoint, for compatible gateways and tests.
func (r *CohereReranker) SetBaseURL(url string) {
	r.baseURL = strings.TrimSuffix(url, "/")
}

// Rerank scores the texts against the query. Pairs absent from the API
// response are dropped from the output rather than failing the call.
func (r *CohereReranker) Rerank(ctx context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// API limit per request
	const maxDocs = 1000
	if len(texts) > maxDocs {
		texts = texts[:maxDocs]
	}

	reqBody := cohereRerankRequest{
		Query:     query,
		Documents: texts,
		Model:     r.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "cohere", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "cohere", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{
			Provider: "cohere",
			Err:      fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var rerankResp cohereRerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, &domain.ProviderError{
			Provider: "cohere",
			Err:      fmt.Errorf("failed to parse response: %w", err),
		}
	}

	results := make([]port.RerankedResult, 0, len(rerankResp.Results))
	for _, res := range rerankResp.Results {
		if res.Index < 0 || res.Index >= len(texts) {
			continue
		}
		results = append(results, port.RerankedResult{
			Index: res.Index,
			Score: clampScore(res.RelevanceScore),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// ModelName returns the model name.
func (r *CohereReranker) ModelName() string {
	return r.model
}

// TermOverlapReranker is a local fallback scoring pairs by the fraction of
// query terms present in the document. Much weaker than a cross-encoder
// model, but keeps reranking available offline.
type TermOverlapReranker struct{}

// NewTermOverlapReranker creates the local fallback reranker.
func NewTermOverlapReranker() *TermOverlapReranker {
	return &TermOverlapReranker{}
}

// Rerank scores documents by query-term overlap in [0,1].
func (r *TermOverlapReranker) Rerank(ctx context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	queryTerms := overlapTerms(query)

	results := make([]port.RerankedResult, len(texts))
	if len(queryTerms) == 0 {
		// Nothing to match against; preserve incoming order.
		for i := range texts {
			results[i] = port.RerankedResult{Index: i, Score: 1.0 - float64(i)*0.01}
		}
		return results, nil
	}

	for i, text := range texts {
		docTerms := overlapTerms(text)
		matches := 0
		for term := range queryTerms {
			if _, ok := docTerms[term]; ok {
				matches++
			}
		}
		results[i] = port.RerankedResult{
			Index: i,
			Score: float64(matches) / float64(len(queryTerms)),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// ModelName returns the model name.
func (r *TermOverlapReranker) ModelName() string {
	return "term-overlap"
}

func overlapTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	var word strings.Builder
	flush := func() {
		if word.Len() >= 2 {
			terms[strings.ToLower(word.String())] = struct{}{}
		}
		word.Reset()
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return terms
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
