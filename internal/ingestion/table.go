package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/54b3r/aiprep-go/internal/rag"
)

// Row is one record of the tabular dataset.
type Row struct {
	Age    float64
	Income float64
	Target float64
}

// requiredColumns must all appear in the header, in any order.
var requiredColumns = []string{"age", "income", "target"}

// IngestTable indexes a .csv or .xlsx dataset. Every row is validated and
// embedded before the single upsert, so a bad row leaves the store untouched.
func (p *Pipeline) IngestTable(ctx context.Context, path string) (*Report, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(path)
	units, err := BuildTableUnits(rows, source, p.cfg.IDPolicy)
	if err != nil {
		return nil, err
	}
	if err := p.embedAndUpsert(ctx, units, source); err != nil {
		return nil, err
	}
	return &Report{Files: 1, Units: len(units)}, nil
}

// RowText renders the sentence embedded for a row.
func RowText(r Row) string {
	return fmt.Sprintf("Person age %.0f has income %.0f and target value %.3f.", r.Age, r.Income, r.Target)
}

// BuildTableUnits turns rows into units. It is pure: the same rows, source
// and policy always produce the same ids and texts.
func BuildTableUnits(rows []Row, source string, policy IDPolicy) ([]rag.Unit, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, source)
	}
	meta := InferMetadata(source)

	units := make([]rag.Unit, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, r := range rows {
		text := RowText(r)

		var id string
		switch policy {
		case IDContent:
			h := sha256.Sum256([]byte(text))
			id = fmt.Sprintf("row-%x", h[:8])
		case IDPositional, "":
			id = "row-" + strconv.Itoa(i)
		default:
			return nil, fmt.Errorf("ingestion: unknown id policy %q", policy)
		}
		// Content ids collapse duplicate rows; keep the first occurrence so
		// one upsert batch never carries the same id twice.
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		units = append(units, rag.Unit{
			ID:     id,
			Text:   text,
			Source: source,
			Metadata: map[string]string{
				"source": source,
				"row":    strconv.Itoa(i),
				"format": meta.Format,
			},
		})
	}
	return units, nil
}

// ReadTable loads the dataset at path, choosing the reader by extension.
func ReadTable(path string) ([]Row, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}

	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(path)
	case ".xlsx", ".xlsm":
		records, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("ingestion: unsupported dataset format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	return parseRecords(path, records)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingestion: parse %s: %w", path, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// readXLSX reads the first sheet of a workbook.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrEmptyDataset, path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("ingestion: read sheet %q of %s: %w", sheets[0], path, err)
	}
	return rows, nil
}

// parseRecords maps a header row plus data rows onto Row values. Blank
// lines are skipped; any non-numeric cell aborts the whole read.
func parseRecords(path string, records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, path)
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	cols := make([]int, len(requiredColumns))
	for i, name := range requiredColumns {
		c, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("ingestion: %s is missing required column %q", path, name)
		}
		cols[i] = c
	}

	var rows []Row
	for line, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		var vals [3]float64
		for i, c := range cols {
			if c >= len(rec) {
				return nil, fmt.Errorf("ingestion: %s row %d: missing %q", path, line+1, requiredColumns[i])
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return nil, fmt.Errorf("ingestion: %s row %d: %q is not a number: %w", path, line+1, requiredColumns[i], err)
			}
			vals[i] = v
		}
		rows = append(rows, Row{Age: vals[0], Income: vals[1], Target: vals[2]})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDataset, path)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
