package cli

import (
	"fmt"

	"hybridrag/config"
	"hybridrag/internal/adapter/embedding"
	"hybridrag/internal/adapter/retriever"
	"hybridrag/internal/adapter/store"
	"hybridrag/internal/port"
	"hybridrag/internal/usecase"
)

// openEngine wires the store, embedder and reranker from config and loads
// the engine. The caller owns Close.
func openEngine() (*usecase.SearchEngine, error) {
	if err := config.EnsureDataDir(rootDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(rootDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	reranker, err := buildReranker(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine, err := usecase.NewSearchEngine(st, embedder, reranker, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	return engine, nil
}

func buildEmbedder(cfg *config.Config) (port.Embedder, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case "openai":
		if ec.BaseURL != "" {
			return embedding.NewOpenAICompatibleEmbedder(ec.APIKeyEnv, ec.Model, ec.BaseURL, ec.Dimension)
		}
		return embedding.NewOpenAIEmbedder(ec.APIKeyEnv, ec.Model, ec.Dimension)
	case "jina":
		return embedding.NewJinaEmbedder(ec.APIKeyEnv, ec.Model, ec.Dimension)
	case "ollama":
		return embedding.NewOllamaEmbedder(ec.Model, ec.BaseURL, ec.Dimension)
	case "mock":
		return embedding.NewMockEmbedder(ec.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", ec.Provider)
	}
}

func buildReranker(cfg *config.Config) (port.Reranker, error) {
	if !cfg.Rerank.Enabled {
		return nil, nil
	}
	switch cfg.Rerank.Provider {
	case "cohere":
		return retriever.NewCohereReranker(cfg.Rerank.APIKeyEnv, cfg.Rerank.Model)
	case "local":
		return retriever.NewTermOverlapReranker(), nil
	default:
		return nil, fmt.Errorf("unknown rerank provider: %s", cfg.Rerank.Provider)
	}
}
