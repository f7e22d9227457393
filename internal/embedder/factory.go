package embedder

import (
	"fmt"

	"github.com/54b3r/aiprep-go/internal/config"
	"github.com/54b3r/aiprep-go/internal/rag"
)

const (
	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the embedding vector size for cfg. Callers that
// must pre-size a collection (Qdrant) use this rather than hardcoding a value.
// An explicit EMBEDDING_DIMENSIONS always wins.
func DefaultDimensions(cfg config.EmbeddingSettings) int {
	if cfg.Dimensions > 0 {
		return cfg.Dimensions
	}
	switch cfg.Provider {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// New constructs the rag.Embedder selected by cfg.Provider.
func New(cfg config.EmbeddingSettings) (rag.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  cfg.BaseURL,
			Model: cfg.Model,
		}), nil

	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil

	case "azure":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.BaseURL + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q; valid values: ollama, openai, azure", cfg.Provider)
	}
}
