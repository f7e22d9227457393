package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/aiprep-go/internal/logging"
)

// StoreRetriever embeds the query with the same Embedder used at ingestion
// time and asks the Document Store for its nearest units.
type StoreRetriever struct {
	embedder    Embedder
	store       VectorStore
	defaultTopK int
}

// NewRetriever wires an Embedder to a VectorStore. defaultTopK applies when
// Retrieve is called with topK <= 0; it defaults to 3.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*StoreRetriever, error) {
	if embedder == nil {
		return nil, errors.New("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, errors.New("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &StoreRetriever{embedder: embedder, store: store, defaultTopK: defaultTopK}, nil
}

// Retrieve returns up to topK units ranked by similarity to query. An empty
// result is not an error. A blank query is.
func (r *StoreRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Unit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("rag: query must not be blank")
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("rag: embed query: expected one vector, got %d", len(vecs))
	}

	units, err := r.store.Search(ctx, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	logging.FromContext(ctx).Debug("rag: retrieved",
		slog.Int("top_k", topK),
		slog.Int("hits", len(units)),
	)
	return units, nil
}
