package ingestion

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/54b3r/aiprep-go/internal/logging"
	"github.com/54b3r/aiprep-go/internal/rag"
)

// pdfFile is one parsed file waiting to be embedded.
type pdfFile struct {
	name  string
	units []rag.Unit
}

// IngestPDFDir indexes every *.pdf directly inside dir, in name order. All
// files are read and chunked before anything is embedded, so a corrupt PDF
// aborts the run before the store is touched.
func (p *Pipeline) IngestPDFDir(ctx context.Context, dir string) (*Report, error) {
	log := logging.FromContext(ctx)

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("ingestion: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingestion: %s is not a directory", dir)
	}

	paths, err := listPDFs(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no PDF files in %s", ErrEmptyDataset, dir)
	}

	files := make([]pdfFile, 0, len(paths))
	total := 0
	for _, path := range paths {
		pages, err := readPDFPages(path)
		if err != nil {
			return nil, fmt.Errorf("ingestion: read %s: %w", path, err)
		}
		units, err := p.chunkPages(filepath.Base(path), pages)
		if err != nil {
			return nil, fmt.Errorf("ingestion: chunk %s: %w", path, err)
		}
		if len(units) == 0 {
			log.Warn("ingestion: no extractable text, skipping", slog.String("file", path))
			continue
		}
		files = append(files, pdfFile{name: filepath.Base(path), units: units})
		total += len(units)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no extractable text in %s", ErrEmptyDataset, dir)
	}

	report := &Report{Files: len(paths)}
	err = p.upsertFiles(ctx, files, report)
	return report, err
}

// upsertFiles embeds and upserts one file at a time. A failure stops the run
// but leaves the files already upserted in the store; report counts them.
func (p *Pipeline) upsertFiles(ctx context.Context, files []pdfFile, report *Report) error {
	for _, f := range files {
		if err := p.embedAndUpsert(ctx, f.units, f.name); err != nil {
			return err
		}
		report.Units += len(f.units)
	}
	return nil
}

// chunkPages splits each page separately so every chunk carries its page.
func (p *Pipeline) chunkPages(file string, pages []string) ([]rag.Unit, error) {
	meta := InferMetadata(file)
	var units []rag.Unit
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		chunks, err := p.splitter.SplitText(text)
		if err != nil {
			return nil, err
		}
		page := i + 1
		for j, chunk := range chunks {
			units = append(units, rag.Unit{
				ID:     pdfChunkID(file, page, j),
				Text:   chunk,
				Source: file,
				Metadata: map[string]string{
					"source":      file,
					"page":        strconv.Itoa(page),
					"chunk_index": strconv.Itoa(j),
					"format":      meta.Format,
					"doc_type":    meta.DocType,
					"title":       meta.Title,
				},
			})
		}
	}
	return units, nil
}

// listPDFs returns the sorted *.pdf paths directly inside dir.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingestion: list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// readPDFPages returns the plain text of every page, 1-based page i at index i-1.
func readPDFPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pdfChunkID is deterministic in (file, page, chunk), so re-ingesting an
// unchanged directory replaces units instead of duplicating them.
func pdfChunkID(file string, page, chunk int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d#%d", file, page, chunk)))
	return fmt.Sprintf("pdf-%x", h[:16])
}
