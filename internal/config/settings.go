package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings is the resolved process configuration. It is built once by
// FromEnv after Load has applied the file layers, and passed by pointer into
// every constructor that needs it.
type Settings struct {
	Model     ModelSettings
	Embedding EmbeddingSettings
	Store     StoreSettings
	RAG       RAGSettings
	Data      DataSettings
	Predict   PredictSettings
	Server    ServerSettings
	Bridge    BridgeSettings
	Logging   LoggingSettings
	Tracing   TracingSettings
}

// ModelSettings selects and tunes the language model backend.
type ModelSettings struct {
	// Provider is one of ollama, openai, azure, ark, gemini.
	Provider    string
	Model       string
	AgentModel  string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float32

	// Azure-only fields.
	AzureDeployment string
	AzureAPIVersion string
}

// EmbeddingSettings selects the embedding provider.
type EmbeddingSettings struct {
	Provider   string
	Model      string
	Dimensions int
	BaseURL    string
	APIKey     string
	APIVersion string
}

// StoreSettings addresses the Document Store.
type StoreSettings struct {
	// Backend is "local" or "qdrant".
	Backend    string
	Path       string
	Collection string
	QdrantHost string
	QdrantPort int
	QdrantKey  string
	QdrantTLS  bool
}

// RAGSettings tunes retrieval and chunking.
type RAGSettings struct {
	TopK          int
	ContextTokens int
	IDPolicy      string
	ChunkSize     int
	ChunkOverlap  int
}

// DataSettings locates ingestion sources.
type DataSettings struct {
	Dir     string
	CSVPath string
}

// PredictSettings locates the prediction artifact.
type PredictSettings struct {
	ModelURI string
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host   string
	Port   int
	APIKey string
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BridgeSettings configures the stdio bridge.
type BridgeSettings struct {
	APIBase string
}

// LoggingSettings configures slog.
type LoggingSettings struct {
	Level  string
	Format string
}

// TracingSettings holds optional Langfuse credentials.
type TracingSettings struct {
	PublicKey string
	SecretKey string
	Host      string
}

// Enabled reports whether both Langfuse keys are present.
func (t TracingSettings) Enabled() bool {
	return t.PublicKey != "" && t.SecretKey != ""
}

// Defaults used when neither the YAML file nor the environment sets a value.
const (
	DefaultProvider      = "ollama"
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultOllamaModel   = "llama3"
	DefaultAgentModel    = "llama3.1"
	DefaultOpenAIModel   = "gpt-4o"
	DefaultGeminiModel   = "gemini-1.5-pro"
	DefaultEmbedModel    = "nomic-embed-text"
	DefaultStoreBackend  = "local"
	DefaultStorePath     = "rag/store.db"
	DefaultCollection    = "legal_docs"
	DefaultTopK          = 3
	DefaultContextTokens = 6000
	DefaultIDPolicy      = "positional"
	DefaultChunkSize     = 800
	DefaultChunkOverlap  = 200
	DefaultQdrantHost    = "localhost"
	DefaultQdrantPort    = 6334
	DefaultDataDir       = "data"
	DefaultCSVPath       = "data/sample.csv"
	DefaultModelURI      = "models/latest_catboost/model.json"
	DefaultAPIBase       = "http://127.0.0.1:8000"
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 8000
	DefaultMaxTokens     = 1024
)

// FromEnv builds Settings from the current environment, filling defaults
// for unset keys. Numeric values that fail to parse are reported as errors
// rather than silently replaced.
func FromEnv() (*Settings, error) {
	r := envReader{}
	s := &Settings{}

	s.Model.Provider = strings.ToLower(r.str("MODEL_PROVIDER", DefaultProvider))
	s.Model.AgentModel = r.str("AGENT_MODEL", DefaultAgentModel)
	s.Model.MaxTokens = r.num("MODEL_MAX_TOKENS", DefaultMaxTokens)
	s.Model.Temperature = r.f32("MODEL_TEMPERATURE", 0)

	switch s.Model.Provider {
	case "ollama":
		s.Model.BaseURL = r.str("OLLAMA_HOST", DefaultOllamaHost)
		s.Model.Model = r.str("OLLAMA_MODEL", DefaultOllamaModel)
	case "openai":
		s.Model.APIKey = os.Getenv("OPENAI_API_KEY")
		s.Model.Model = r.str("OPENAI_MODEL", DefaultOpenAIModel)
	case "azure":
		s.Model.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		s.Model.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		s.Model.AzureDeployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		s.Model.AzureAPIVersion = r.str("AZURE_OPENAI_API_VERSION", "2024-08-01-preview")
		s.Model.Model = s.Model.AzureDeployment
	case "ark":
		s.Model.APIKey = os.Getenv("ARK_API_KEY")
		s.Model.Model = os.Getenv("ARK_MODEL")
		s.Model.BaseURL = os.Getenv("ARK_BASE_URL")
	case "gemini":
		s.Model.APIKey = os.Getenv("GOOGLE_API_KEY")
		s.Model.Model = r.str("GEMINI_MODEL", DefaultGeminiModel)
	default:
		return nil, fmt.Errorf("config: unsupported MODEL_PROVIDER %q (supported: ollama, openai, azure, ark, gemini)", s.Model.Provider)
	}

	s.Embedding = embeddingFromEnv(&r, s.Model)

	s.Store.Backend = strings.ToLower(r.str("VECTOR_STORE", DefaultStoreBackend))
	s.Store.Path = r.str("VECTOR_STORE_PATH", DefaultStorePath)
	s.Store.Collection = r.str("RAG_COLLECTION", DefaultCollection)
	s.Store.QdrantHost = r.str("QDRANT_HOST", DefaultQdrantHost)
	s.Store.QdrantPort = r.num("QDRANT_PORT", DefaultQdrantPort)
	s.Store.QdrantKey = os.Getenv("QDRANT_API_KEY")
	s.Store.QdrantTLS = r.flag("QDRANT_TLS")
	if s.Store.Backend != "local" && s.Store.Backend != "qdrant" {
		return nil, fmt.Errorf("config: unsupported VECTOR_STORE %q (supported: local, qdrant)", s.Store.Backend)
	}

	s.RAG.TopK = r.num("RAG_TOP_K", DefaultTopK)
	s.RAG.ContextTokens = r.num("RAG_CONTEXT_TOKENS", DefaultContextTokens)
	s.RAG.IDPolicy = strings.ToLower(r.str("RAG_ID_POLICY", DefaultIDPolicy))
	s.RAG.ChunkSize = r.num("CHUNK_SIZE", DefaultChunkSize)
	s.RAG.ChunkOverlap = r.num("CHUNK_OVERLAP", DefaultChunkOverlap)
	if s.RAG.IDPolicy != "positional" && s.RAG.IDPolicy != "content" {
		return nil, fmt.Errorf("config: unsupported RAG_ID_POLICY %q (supported: positional, content)", s.RAG.IDPolicy)
	}
	if s.RAG.ChunkOverlap >= s.RAG.ChunkSize {
		return nil, fmt.Errorf("config: CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", s.RAG.ChunkOverlap, s.RAG.ChunkSize)
	}

	s.Data.Dir = r.str("DATA_DIR", DefaultDataDir)
	s.Data.CSVPath = r.str("CSV_PATH", DefaultCSVPath)
	s.Predict.ModelURI = r.str("MODEL_URI", DefaultModelURI)

	s.Server.Host = r.str("AIPREP_HOST", DefaultHost)
	s.Server.Port = r.num("AIPREP_PORT", DefaultPort)
	s.Server.APIKey = os.Getenv("AIPREP_API_KEY")
	s.Bridge.APIBase = strings.TrimRight(r.str("API_BASE", DefaultAPIBase), "/")

	s.Logging.Level = r.str("LOG_LEVEL", "info")
	s.Logging.Format = r.str("LOG_FORMAT", "json")

	s.Tracing.PublicKey = os.Getenv("LANGFUSE_PUBLIC_KEY")
	s.Tracing.SecretKey = os.Getenv("LANGFUSE_SECRET_KEY")
	s.Tracing.Host = os.Getenv("LANGFUSE_HOST")

	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}

// embeddingFromEnv resolves the embedding provider. It inherits the chat
// provider when that provider also serves embeddings.
func embeddingFromEnv(r *envReader, m ModelSettings) EmbeddingSettings {
	e := EmbeddingSettings{}
	inherited := DefaultProvider
	switch m.Provider {
	case "openai", "azure":
		inherited = m.Provider
	}
	e.Provider = strings.ToLower(r.str("EMBEDDING_PROVIDER", inherited))

	switch e.Provider {
	case "ollama":
		e.BaseURL = r.str("EMBEDDING_ENDPOINT", r.str("OLLAMA_HOST", DefaultOllamaHost))
		e.Model = r.str("EMBED_MODEL", DefaultEmbedModel)
	case "openai":
		e.BaseURL = r.str("EMBEDDING_ENDPOINT", "https://api.openai.com/v1")
		e.APIKey = r.str("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY"))
		e.Model = r.str("EMBED_MODEL", "text-embedding-3-small")
	case "azure":
		e.BaseURL = r.str("EMBEDDING_ENDPOINT", os.Getenv("AZURE_OPENAI_ENDPOINT"))
		e.APIKey = r.str("EMBEDDING_API_KEY", os.Getenv("AZURE_OPENAI_API_KEY"))
		e.Model = r.str("EMBED_MODEL", "text-embedding-3-small")
		e.APIVersion = r.str("AZURE_OPENAI_API_VERSION", "2024-08-01-preview")
	default:
		e.Model = os.Getenv("EMBED_MODEL")
	}
	e.Dimensions = r.num("EMBEDDING_DIMENSIONS", 0)
	return e
}

// envReader reads typed values and keeps the first parse error.
type envReader struct {
	err error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) num(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(fmt.Errorf("config: %s=%q is not an integer: %w", key, v, err))
		return def
	}
	return n
}

func (r *envReader) f32(key string, def float32) float32 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		r.fail(fmt.Errorf("config: %s=%q is not a number: %w", key, v, err))
		return def
	}
	return float32(f)
}

func (r *envReader) flag(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
