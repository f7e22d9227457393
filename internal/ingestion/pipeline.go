// Package ingestion populates the Document Store. It has two modes: a
// directory of PDF files split into overlapping character chunks, and a
// tabular dataset (.csv or .xlsx) with one synthesized sentence per row.
// Both modes assign explicit, stable ids so re-running an ingestion upserts
// in place. This pipeline is invoked by the `aiprep ingest` CLI command.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/54b3r/aiprep-go/internal/logging"
	"github.com/54b3r/aiprep-go/internal/rag"
)

var (
	// ErrSourceNotFound is returned when the source file or directory does not exist.
	ErrSourceNotFound = errors.New("ingestion: source not found")

	// ErrEmptyDataset is returned when the source holds nothing to index.
	ErrEmptyDataset = errors.New("ingestion: source has no rows or documents")
)

// IDPolicy selects how tabular rows are identified.
type IDPolicy string

const (
	// IDPositional assigns row-<index>. Reordering the source changes ids.
	IDPositional IDPolicy = "positional"
	// IDContent assigns row-<sha256(text)[:16]>. Identical rows collapse.
	IDContent IDPolicy = "content"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the target number of characters per PDF chunk.
	// Defaults to 800 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Defaults to 200 if zero.
	ChunkOverlap int

	// IDPolicy selects tabular ids. Defaults to IDPositional.
	IDPolicy IDPolicy
}

// Report summarises one ingestion run.
type Report struct {
	// Files is the number of source files read.
	Files int
	// Units is the number of units upserted.
	Units int
}

// Pipeline orchestrates the read → chunk → embed → upsert flow.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	splitter textsplitter.TextSplitter
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("ingestion: chunk overlap %d must be smaller than chunk size %d", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	switch cfg.IDPolicy {
	case "":
		cfg.IDPolicy = IDPositional
	case IDPositional, IDContent:
	default:
		return nil, fmt.Errorf("ingestion: unknown id policy %q", cfg.IDPolicy)
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
	}, nil
}

// embedAndUpsert embeds the unit texts in one call and writes them in one
// upsert.
func (p *Pipeline) embedAndUpsert(ctx context.Context, units []rag.Unit, label string) error {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("ingestion: embedding failed for %s: %w", label, err)
	}
	if len(embeddings) != len(units) {
		return fmt.Errorf("ingestion: embedder returned %d vectors for %d units of %s", len(embeddings), len(units), label)
	}
	if err := p.store.Upsert(ctx, units, embeddings); err != nil {
		return fmt.Errorf("ingestion: upsert failed for %s: %w", label, err)
	}

	logging.FromContext(ctx).Info("ingestion: upserted units",
		slog.String("source", label),
		slog.Int("units", len(units)),
	)
	return nil
}
