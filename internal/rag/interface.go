// Package rag defines the retrieval-augmented generation components: the
// Retrievable Unit data model, vector storage, retrieval, and the query
// pipeline that turns a question into a grounded answer.
// Concrete stores (SQLite in internal/store, Qdrant here) satisfy VectorStore
// so the pipeline never depends on a specific backend.
package rag

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when an embedding's length differs from
// the dimension already fixed for a collection.
var ErrDimensionMismatch = errors.New("rag: embedding dimension mismatch")

// Unit is a Retrievable Unit: one chunk of text plus its provenance.
type Unit struct {
	// ID is unique within a collection. Upserting an existing ID replaces it.
	ID string

	// Text is the chunk content that is embedded and returned as context.
	Text string

	// Source identifies the originating file or dataset.
	Source string

	// Metadata holds string key-value pairs. "source" is always mirrored
	// from Source when a store returns a unit.
	Metadata map[string]string

	// Score is the similarity assigned during retrieval. Zero means not computed.
	Score float32
}

// VectorStore persists units with their embeddings and answers k-NN queries.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or replaces units by ID. embeddings[i] is the vector
	// for units[i].
	Upsert(ctx context.Context, units []Unit, embeddings [][]float32) error

	// Search returns up to topK units ordered by similarity, descending.
	// An empty collection yields an empty slice and no error.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Unit, error)

	// Count returns the number of units in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings. The returned slice is
// parallel to the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM is the Language Model Backend: a prompt in, a completion out.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever fetches the most relevant units for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Unit, error)
}
