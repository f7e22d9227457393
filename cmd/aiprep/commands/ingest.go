package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/aiprep-go/internal/config"
	"github.com/54b3r/aiprep-go/internal/ingestion"
	"github.com/54b3r/aiprep-go/internal/logging"
)

// NewIngestCmd constructs the `aiprep ingest` command group, which runs the
// ingestion pipeline to populate the Document Store.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index PDFs or a tabular dataset into the Document Store",
		Long: `Index source documents into the configured Document Store.

A missing or empty source fails before anything is written. A table is read,
embedded and upserted as one batch, so a malformed row leaves the store
untouched. PDFs are all read and chunked first, then embedded and upserted one
file at a time: an embedding or store failure on a later file leaves the
earlier files indexed. Units are upserted by id, so re-running over unchanged
sources is idempotent.

Relevant settings:
  VECTOR_STORE         local (SQLite file) or qdrant (default: local)
  VECTOR_STORE_PATH    local store path (default: rag/store.db)
  RAG_COLLECTION       collection name (default: legal_docs)
  EMBEDDING_PROVIDER   embedder backend (default: inherits MODEL_PROVIDER)
  EMBED_MODEL          embedding model (default: nomic-embed-text)`,
	}

	cmd.AddCommand(newIngestPDFCmd(), newIngestTableCmd())
	return cmd
}

func newIngestPDFCmd() *cobra.Command {
	var dir string
	var chunkSize, chunkOverlap int

	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Index every PDF in a directory",
		Long: `Extract text page by page from every *.pdf in --dir (DATA_DIR), split it
into overlapping chunks and index them with source, page and doc_type metadata.

Examples:
  aiprep ingest pdf
  aiprep ingest pdf --dir ./contracts --chunk-size 1000 --chunk-overlap 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settings
			if cmd.Flags().Changed("dir") {
				s.Data.Dir = dir
			}
			cfg := &ingestion.Config{
				ChunkSize:    s.RAG.ChunkSize,
				ChunkOverlap: s.RAG.ChunkOverlap,
				IDPolicy:     ingestion.IDPolicy(s.RAG.IDPolicy),
			}
			if cmd.Flags().Changed("chunk-size") {
				cfg.ChunkSize = chunkSize
			}
			if cmd.Flags().Changed("chunk-overlap") {
				cfg.ChunkOverlap = chunkOverlap
			}

			return runIngest(cmd, s, cfg, "pdf", s.Data.Dir, func(p *ingestion.Pipeline) (*ingestion.Report, error) {
				return p.IngestPDFDir(cmd.Context(), s.Data.Dir)
			})
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of PDFs (overrides DATA_DIR)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Characters per chunk (overrides CHUNK_SIZE)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Characters shared by consecutive chunks (overrides CHUNK_OVERLAP)")

	return cmd
}

func newIngestTableCmd() *cobra.Command {
	var path string
	var idPolicy string

	cmd := &cobra.Command{
		Use:   "table",
		Short: "Index a .csv or .xlsx dataset, one unit per row",
		Long: `Index a tabular dataset with columns age, income and target. Each row
becomes one unit with the text
  "Person age <age> has income <income> and target value <target>."

--id-policy selects the row ids:
  positional  row-<index>; reordering the file changes the ids
  content     row-<hash of the text>; identical rows collapse into one

Examples:
  aiprep ingest table
  aiprep ingest table --file data/sample.xlsx --id-policy content`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settings
			if cmd.Flags().Changed("file") {
				s.Data.CSVPath = path
			}
			policy := s.RAG.IDPolicy
			if cmd.Flags().Changed("id-policy") {
				policy = idPolicy
			}
			cfg := &ingestion.Config{
				ChunkSize:    s.RAG.ChunkSize,
				ChunkOverlap: s.RAG.ChunkOverlap,
				IDPolicy:     ingestion.IDPolicy(policy),
			}

			return runIngest(cmd, s, cfg, "table", s.Data.CSVPath, func(p *ingestion.Pipeline) (*ingestion.Report, error) {
				return p.IngestTable(cmd.Context(), s.Data.CSVPath)
			})
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "Dataset path, .csv or .xlsx (overrides CSV_PATH)")
	cmd.Flags().StringVar(&idPolicy, "id-policy", "", "Row id policy: positional or content (overrides RAG_ID_POLICY)")

	return cmd
}

// runIngest opens the embedder and store, builds the pipeline and runs one
// ingestion mode.
func runIngest(cmd *cobra.Command, s *config.Settings, cfg *ingestion.Config, mode, source string, run func(*ingestion.Pipeline) (*ingestion.Report, error)) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	emb, err := buildEmbedder(s, log)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	vs, err := buildStore(ctx, s, log)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer func() { _ = vs.Close() }()

	pipeline, err := ingestion.NewPipeline(emb, vs, cfg)
	if err != nil {
		return fmt.Errorf("ingest: failed to create pipeline: %w", err)
	}

	log.Info("starting ingestion", slog.String("mode", mode), slog.String("source", source))
	report, err := run(pipeline)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	total, err := vs.Count(ctx)
	if err != nil {
		log.Warn("ingest: could not count collection", slog.Any("error", err))
	}
	log.Info("ingestion complete",
		slog.String("mode", mode),
		slog.Int("files", report.Files),
		slog.Int("units", report.Units),
		slog.Int("collection_total", total),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d units from %d file(s) into %q (%d total).\n",
		report.Units, report.Files, s.Store.Collection, total)
	return nil
}
