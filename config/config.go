package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the hybrid retrieval engine.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig selects the embedding backend. Dimension must match the
// model; a mismatch with the dense index is a fatal configuration error.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "jina", "ollama", "mock"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
}

// IndexConfig holds index construction parameters.
type IndexConfig struct {
	Metric   string  `yaml:"metric"` // "cosine" or "l2"
	K1       float64 `yaml:"k1"`
	B        float64 `yaml:"b"`
	Stemming bool    `yaml:"stemming"`
}

// RetrieveConfig holds query-time parameters.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k"`
	Alpha           float64 `yaml:"alpha"`          // dense weight in [0,1]
	CandidatePool   int     `yaml:"candidate_pool"` // per-index fetch size before fusion
	RerankTopN      int     `yaml:"rerank_top_n"`   // fused candidates passed to the reranker
	CacheSize       int     `yaml:"cache_size"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// RerankConfig selects the cross-encoder backend.
type RerankConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Provider  string `yaml:"provider"` // "cohere" or "local"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// IngestConfig holds chunk-file discovery patterns for the CLI.
type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
		},
		Index: IndexConfig{
			Metric:   "cosine",
			K1:       1.2,
			B:        0.75,
			Stemming: false,
		},
		Retrieve: RetrieveConfig{
			TopK:            10,
			Alpha:           0.5,
			CandidatePool:   50,
			RerankTopN:      20,
			CacheSize:       100,
			CacheTTLSeconds: 300,
		},
		Rerank: RerankConfig{
			Enabled:   false,
			Provider:  "cohere",
			Model:     "rerank-english-v3.0",
			APIKeyEnv: "COHERE_API_KEY",
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.jsonl"},
			Excludes: []string{"**/.hybridrag/**"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the parts of the configuration that would otherwise fail
// deep inside a request.
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Retrieve.Alpha < 0 || c.Retrieve.Alpha > 1 {
		return fmt.Errorf("retrieve alpha must be in [0,1], got %g", c.Retrieve.Alpha)
	}
	switch c.Index.Metric {
	case "", "cosine", "l2":
	default:
		return fmt.Errorf("unknown index metric: %s", c.Index.Metric)
	}
	return nil
}

// Load loads configuration from a YAML file, layered over defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// LoadFromDir loads configuration from a directory (looks for hybridrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "hybridrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".hybridrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".hybridrag", "index.db")
}

// EnsureDataDir ensures the .hybridrag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".hybridrag"), 0755)
}
