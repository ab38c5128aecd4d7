package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"hybridrag/internal/domain"
)

// OpenAIEmbedder calls any endpoint speaking the OpenAI embeddings API.
type OpenAIEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	batchSize int
	client    *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewOpenAIEmbedder(apiKeyEnv, model string, dimension int) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, "https://api.openai.com/v1", dimension)
}

func NewJinaEmbedder(apiKeyEnv, model string, dimension int) (*OpenAIEmbedder, error) {
	return NewOpenAICompatibleEmbedder(apiKeyEnv, model, "https://api.jina.ai/v1", dimension)
}

// NewOllamaEmbedder targets a local Ollama server; no API key required.
func NewOllamaEmbedder(model, baseURL string, dimension int) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	if dimension <= 0 {
		dimension = defaultDimension(model)
	}

	return &OpenAIEmbedder{
		apiKey:    "ollama",
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		batchSize: 100,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func NewOpenAICompatibleEmbedder(apiKeyEnv, model, baseURL string, dimension int) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if dimension <= 0 {
		dimension = defaultDimension(model)
	}

	return &OpenAIEmbedder{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		dimension: dimension,
		batchSize: 100,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func defaultDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "jina-embeddings-v3":
		return 1024
	case "mxbai-embed-large":
		return 1024
	case "nomic-embed-text":
		return 768
	case "all-minilm":
		return 384
	default:
		return 1536
	}
}

// Embed generates one vector per input text, batching requests to the API.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var all [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, vectors...)
	}

	return all, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Input: texts,
		Model: e.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "embedding", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Provider: "embedding", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProviderError{
			Provider: "embedding",
			Err:      fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, &domain.ProviderError{
			Provider: "embedding",
			Err:      fmt.Errorf("failed to parse response (body: %s): %w", preview, err),
		}
	}

	if embResp.Error != nil {
		return nil, &domain.ProviderError{
			Provider: "embedding",
			Err:      fmt.Errorf("API error: %s", embResp.Error.Message),
		}
	}

	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index >= 0 && data.Index < len(vectors) {
			vectors[data.Index] = data.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, &domain.ProviderError{
				Provider: "embedding",
				Err:      fmt.Errorf("no embedding returned for input %d", i),
			}
		}
	}

	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// SetBaseURL overrides the API endpoint, for compatible gateways and tests.
func (e *OpenAIEmbedder) SetBaseURL(url string) {
	e.baseURL = url
}

// MockEmbedder produces deterministic vectors derived from the input bytes.
// Used in tests and for offline runs.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = make([]float32, e.dimension)
		for j, r := range text {
			vectors[i][j%e.dimension] += float32(r) / 1000.0
		}
	}
	return vectors, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
