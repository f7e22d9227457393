// Package config provides layered configuration for aiprep.
// Configuration is loaded with the precedence: defaults → YAML file → .env → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. AIPREP_CONFIG environment variable
//  3. ~/.aiprep/config.yaml
//  4. ./aiprep.yaml
//
// After Load has applied the file layers, FromEnv builds the single Settings
// value that is handed to every constructor.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type File struct {
	// Model configures the LLM chat model provider.
	Model ModelFile `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingFile `yaml:"embedding"`

	// Store configures the document store.
	Store StoreFile `yaml:"store"`

	// RAG configures retrieval and chunking.
	RAG RAGFile `yaml:"rag"`

	// Data configures ingestion sources.
	Data DataFile `yaml:"data"`

	// Predict configures the prediction artifact.
	Predict PredictFile `yaml:"predict"`

	// Server configures the HTTP server.
	Server ServerFile `yaml:"server"`

	// Bridge configures the stdio bridge.
	Bridge BridgeFile `yaml:"bridge"`

	// Logging configures structured logging.
	Logging LoggingFile `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingFile `yaml:"tracing"`
}

// ModelFile holds LLM chat model settings.
type ModelFile struct {
	Provider    string  `yaml:"provider"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	AgentModel  string  `yaml:"agent_model"`
	Ollama      struct {
		Host  string `yaml:"host"`
		Model string `yaml:"model"`
	} `yaml:"ollama"`
	OpenAI struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
	Azure struct {
		APIKey     string `yaml:"api_key"`
		Endpoint   string `yaml:"endpoint"`
		Deployment string `yaml:"deployment"`
		APIVersion string `yaml:"api_version"`
	} `yaml:"azure"`
	Ark struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"ark"`
	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`
}

// EmbeddingFile holds embedding provider settings.
type EmbeddingFile struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
}

// StoreFile holds document store settings.
type StoreFile struct {
	// Backend is "local" (SQLite file) or "qdrant".
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Qdrant     struct {
		Host   string `yaml:"host"`
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
		TLS    bool   `yaml:"tls"`
	} `yaml:"qdrant"`
}

// RAGFile holds retrieval and chunking settings.
type RAGFile struct {
	TopK          int    `yaml:"top_k"`
	ContextTokens int    `yaml:"context_tokens"`
	IDPolicy      string `yaml:"id_policy"`
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
}

// DataFile holds ingestion source paths.
type DataFile struct {
	Dir     string `yaml:"dir"`
	CSVPath string `yaml:"csv_path"`
}

// PredictFile holds the prediction artifact location.
type PredictFile struct {
	ModelURI string `yaml:"model_uri"`
}

// ServerFile holds HTTP server settings.
type ServerFile struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// BridgeFile holds stdio bridge settings.
type BridgeFile struct {
	APIBase string `yaml:"api_base"`
}

// LoggingFile holds structured logging settings.
type LoggingFile struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingFile holds Langfuse tracing settings.
type TracingFile struct {
	PublicKey string `yaml:"public_key"`
	SecretKey string `yaml:"secret_key"`
	Host      string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*File) string
}{
	{"MODEL_PROVIDER", func(c *File) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *File) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *File) string { return float32Str(c.Model.Temperature) }},
	{"AGENT_MODEL", func(c *File) string { return c.Model.AgentModel }},
	{"OLLAMA_HOST", func(c *File) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *File) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *File) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *File) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *File) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *File) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *File) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *File) string { return c.Model.Azure.APIVersion }},
	{"ARK_API_KEY", func(c *File) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *File) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *File) string { return c.Model.Ark.BaseURL }},
	{"GOOGLE_API_KEY", func(c *File) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *File) string { return c.Model.Gemini.Model }},
	{"EMBEDDING_PROVIDER", func(c *File) string { return c.Embedding.Provider }},
	{"EMBED_MODEL", func(c *File) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *File) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *File) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *File) string { return c.Embedding.Endpoint }},
	{"VECTOR_STORE", func(c *File) string { return c.Store.Backend }},
	{"VECTOR_STORE_PATH", func(c *File) string { return c.Store.Path }},
	{"RAG_COLLECTION", func(c *File) string { return c.Store.Collection }},
	{"QDRANT_HOST", func(c *File) string { return c.Store.Qdrant.Host }},
	{"QDRANT_PORT", func(c *File) string { return intStr(c.Store.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *File) string { return c.Store.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *File) string { return boolStr(c.Store.Qdrant.TLS) }},
	{"RAG_TOP_K", func(c *File) string { return intStr(c.RAG.TopK) }},
	{"RAG_CONTEXT_TOKENS", func(c *File) string { return intStr(c.RAG.ContextTokens) }},
	{"RAG_ID_POLICY", func(c *File) string { return c.RAG.IDPolicy }},
	{"CHUNK_SIZE", func(c *File) string { return intStr(c.RAG.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *File) string { return intStr(c.RAG.ChunkOverlap) }},
	{"DATA_DIR", func(c *File) string { return c.Data.Dir }},
	{"CSV_PATH", func(c *File) string { return c.Data.CSVPath }},
	{"MODEL_URI", func(c *File) string { return c.Predict.ModelURI }},
	{"AIPREP_HOST", func(c *File) string { return c.Server.Host }},
	{"AIPREP_PORT", func(c *File) string { return intStr(c.Server.Port) }},
	{"AIPREP_API_KEY", func(c *File) string { return c.Server.APIKey }},
	{"API_BASE", func(c *File) string { return c.Bridge.APIBase }},
	{"LOG_LEVEL", func(c *File) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *File) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *File) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *File) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *File) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and a ./.env file and applies non-empty
// values as environment variables. Existing env vars are never overwritten
// (env always wins). Returns the YAML path that was loaded, or empty string
// if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	if err := loadDotEnv(".env", log); err != nil {
		return "", err
	}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set, do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// loadDotEnv applies a dotenv file if present. godotenv.Load never
// overrides variables that are already set.
func loadDotEnv(path string, log *slog.Logger) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded dotenv file", slog.String("path", path))
	return nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("AIPREP_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".aiprep", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("aiprep.yaml"); err == nil {
		return "aiprep.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
