package ingestion

import (
	"path/filepath"
	"strings"
)

// InferredMetadata holds the format, document type and title inferred from a
// source file name. It is best-effort: unknown names fall back to defaults.
type InferredMetadata struct {
	// Format is the lowercase file extension without the dot (pdf, csv, xlsx).
	Format string
	// DocType classifies the document (contract, lease, nda, policy, invoice,
	// regulation, judgment, dataset, document).
	DocType string
	// Title is the file name stem with separators replaced by spaces.
	Title string
}

// docTypeKeywords maps file-name tokens to a canonical document type. The
// first matching token wins, scanning the name left to right.
var docTypeKeywords = map[string]string{
	"contract":     "contract",
	"agreement":    "contract",
	"msa":          "contract",
	"sow":          "contract",
	"lease":        "lease",
	"tenancy":      "lease",
	"rental":       "lease",
	"nda":          "nda",
	"confidential": "nda",
	"policy":       "policy",
	"terms":        "policy",
	"tos":          "policy",
	"privacy":      "policy",
	"invoice":      "invoice",
	"receipt":      "invoice",
	"regulation":   "regulation",
	"act":          "regulation",
	"statute":      "regulation",
	"directive":    "regulation",
	"judgment":     "judgment",
	"judgement":    "judgment",
	"ruling":       "judgment",
	"opinion":      "judgment",
}

// tabularFormats are extensions read by the tabular ingestion mode.
var tabularFormats = map[string]bool{
	"csv":  true,
	"xlsx": true,
	"xlsm": true,
}

// InferMetadata inspects a file name (or path) and returns best-effort
// metadata. Examples:
//
//	data/Lease_Agreement_2024.pdf → {pdf, lease, "Lease Agreement 2024"}
//	mutual-nda.pdf                → {pdf, nda, "mutual nda"}
//	sample.csv                    → {csv, dataset, "sample"}
func InferMetadata(name string) InferredMetadata {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	m := InferredMetadata{
		Format:  strings.TrimPrefix(strings.ToLower(ext), "."),
		DocType: "document",
		Title:   strings.Join(tokens(stem, false), " "),
	}

	if tabularFormats[m.Format] {
		m.DocType = "dataset"
		return m
	}

	for _, tok := range tokens(stem, true) {
		if dt, ok := docTypeKeywords[tok]; ok {
			m.DocType = dt
			break
		}
	}
	return m
}

// tokens splits a file stem on common separators, dropping empties.
func tokens(stem string, lower bool) []string {
	if lower {
		stem = strings.ToLower(stem)
	}
	parts := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
