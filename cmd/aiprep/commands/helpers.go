package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/aiprep-go/internal/agent"
	"github.com/54b3r/aiprep-go/internal/config"
	"github.com/54b3r/aiprep-go/internal/embedder"
	"github.com/54b3r/aiprep-go/internal/predict"
	"github.com/54b3r/aiprep-go/internal/provider"
	"github.com/54b3r/aiprep-go/internal/rag"
	"github.com/54b3r/aiprep-go/internal/server"
	"github.com/54b3r/aiprep-go/internal/store"
	"github.com/54b3r/aiprep-go/internal/tools"
)

// vectorStore is a Document Store that can also be probed by /ready.
type vectorStore interface {
	rag.VectorStore
	Ping(ctx context.Context) error
}

// buildStore opens the Document Store selected by VECTOR_STORE.
func buildStore(ctx context.Context, s *config.Settings, log *slog.Logger) (vectorStore, error) {
	switch s.Store.Backend {
	case "qdrant":
		vs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       s.Store.QdrantHost,
			Port:       s.Store.QdrantPort,
			Collection: s.Store.Collection,
			VectorSize: uint64(embedder.DefaultDimensions(s.Embedding)), //nolint:gosec // dimensions are bounded
			APIKey:     s.Store.QdrantKey,
			UseTLS:     s.Store.QdrantTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", s.Store.QdrantHost, s.Store.QdrantPort, err)
		}
		log.Info("qdrant store ready",
			slog.String("host", s.Store.QdrantHost),
			slog.Int("port", s.Store.QdrantPort),
			slog.String("collection", s.Store.Collection),
		)
		return vs, nil
	default:
		path := s.Store.Path
		if path == "" {
			var err error
			if path, err = store.DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		vs, err := store.Open(path, s.Store.Collection)
		if err != nil {
			return nil, err
		}
		log.Info("local store ready", slog.String("path", path), slog.String("collection", s.Store.Collection))
		return vs, nil
	}
}

// buildEmbedder runs the embedding pre-flight checks and constructs the
// configured embedder.
func buildEmbedder(s *config.Settings, log *slog.Logger) (rag.Embedder, error) {
	embedder.Validate(s.Embedding, s.Model.Model, log)
	emb, err := embedder.New(s.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", s.Embedding.Provider),
		slog.String("model", s.Embedding.Model),
	)
	return emb, nil
}

// queryStack is everything the ask path needs.
type queryStack struct {
	store     vectorStore
	chatModel model.ToolCallingChatModel
	health    provider.HealthChecker
	pipeline  *rag.QueryPipeline
}

// buildQueryStack wires store, embedder, retriever and LLM into a
// QueryPipeline. The caller closes the returned store.
func buildQueryStack(ctx context.Context, s *config.Settings, log *slog.Logger) (*queryStack, error) {
	emb, err := buildEmbedder(s, log)
	if err != nil {
		return nil, err
	}

	providerCfg := provider.FromSettings(s.Model)
	chatModel, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.Model),
	)

	vs, err := buildStore(ctx, s, log)
	if err != nil {
		return nil, err
	}

	retriever, err := rag.NewRetriever(emb, vs, s.RAG.TopK)
	if err != nil {
		_ = vs.Close()
		return nil, err
	}
	pipeline, err := rag.NewQueryPipeline(retriever, provider.NewCompleter(chatModel), rag.PipelineConfig{
		DefaultTopK:   s.RAG.TopK,
		ContextTokens: s.RAG.ContextTokens,
	})
	if err != nil {
		_ = vs.Close()
		return nil, err
	}

	return &queryStack{
		store:     vs,
		chatModel: chatModel,
		health:    provider.HealthCheckFor(providerCfg),
		pipeline:  pipeline,
	}, nil
}

// buildAgent constructs the tool-calling agent on AGENT_MODEL with the
// predict and ask tools.
func buildAgent(ctx context.Context, s *config.Settings, p predict.Predictor, a tools.Asker) (*agent.Agent, error) {
	chatModel, err := provider.New(ctx, provider.FromSettings(s.Model).WithModel(s.Model.AgentModel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialise agent model: %w", err)
	}
	return agent.New(ctx, &agent.Config{
		ChatModel:     chatModel,
		Tools:         tools.All(p, a),
		ContextTokens: s.RAG.ContextTokens,
	})
}

// openPredictor loads the prediction artifact named by MODEL_URI.
func openPredictor(s *config.Settings, log *slog.Logger) (predict.Predictor, error) {
	p, err := predict.Open(s.Predict.ModelURI)
	if err != nil {
		return nil, fmt.Errorf("failed to load model from %q: %w", s.Predict.ModelURI, err)
	}
	log.Info("predictor ready", slog.String("model_uri", s.Predict.ModelURI))
	return p, nil
}

// buildPingers returns the dependency probes run by GET /ready.
func buildPingers(qs *queryStack, p predict.Predictor, providerName string) []server.Pinger {
	return []server.Pinger{
		server.NewLLMPinger(qs.chatModel, qs.health, providerName),
		server.NewDependencyPinger("vector_store", qs.store),
		server.NewPredictorPinger(p),
	}
}
