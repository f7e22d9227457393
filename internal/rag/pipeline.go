package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/aiprep-go/internal/budget"
	"github.com/54b3r/aiprep-go/internal/logging"
)

// FallbackAnswer is returned verbatim, with no sources, when retrieval finds
// nothing. The LLM is not called in that case.
const FallbackAnswer = "I couldn't find anything relevant in the index."

// unknownSource labels units that carry no provenance.
const unknownSource = "unknown"

// promptTemplate grounds the model in the retrieved context. The two %s
// verbs are the joined context and the question, in that order.
const promptTemplate = "Answer the question using ONLY the context below. " +
	"If the answer isn't in the context, say you don't know.\n\n" +
	"Context:\n%s\n\nQuestion: %s\nAnswer:"

// Source is one deduplicated provenance entry of an Answer.
type Source struct {
	Source string `json:"source"`
}

// Answer is the result of a single question. It is built fresh per call.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// PipelineConfig tunes a QueryPipeline.
type PipelineConfig struct {
	// DefaultTopK is used when AnswerQuestion is called with topK <= 0.
	DefaultTopK int

	// ContextTokens is the soft prompt budget. Exceeding it logs a warning;
	// the prompt is never truncated.
	ContextTokens int
}

// QueryPipeline answers questions from the indexed documents. It holds no
// per-request state and is safe for concurrent use when its collaborators are.
type QueryPipeline struct {
	retriever Retriever
	llm       LLM
	cfg       PipelineConfig
}

// NewQueryPipeline wires a retriever and an LLM into a pipeline.
func NewQueryPipeline(retriever Retriever, llm LLM, cfg PipelineConfig) (*QueryPipeline, error) {
	if retriever == nil {
		return nil, fmt.Errorf("rag: retriever must not be nil")
	}
	if llm == nil {
		return nil, fmt.Errorf("rag: llm must not be nil")
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 3
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = budget.DefaultMaxContextTokens
	}
	return &QueryPipeline{retriever: retriever, llm: llm, cfg: cfg}, nil
}

// AnswerQuestion retrieves the topK most similar units, builds a grounded
// prompt from them and returns the model's completion together with the
// distinct sources in ranking order. Store and LLM failures are returned
// unchanged apart from wrapping; nothing is retried.
func (p *QueryPipeline) AnswerQuestion(ctx context.Context, question string, topK int) (*Answer, error) {
	log := logging.FromContext(ctx)
	if topK <= 0 {
		topK = p.cfg.DefaultTopK
	}

	units, err := p.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		log.Info("rag: no units retrieved, returning fallback answer", slog.Int("top_k", topK))
		return &Answer{Text: FallbackAnswer, Sources: []Source{}}, nil
	}

	prompt := BuildPrompt(JoinContext(units), question)
	if n, over := budget.Over(prompt, p.cfg.ContextTokens); over {
		log.Warn("rag: prompt exceeds context budget",
			slog.Int("estimated_tokens", n),
			slog.Int("budget_tokens", p.cfg.ContextTokens),
		)
	}

	start := time.Now()
	text, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rag: completion failed: %w", err)
	}
	log.Debug("rag: answered question",
		slog.Int("units", len(units)),
		slog.Duration("llm_duration", time.Since(start)),
	)

	return &Answer{Text: text, Sources: UniqueSources(units)}, nil
}

// JoinContext concatenates unit texts in the given order, separated by a
// blank line.
func JoinContext(units []Unit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.Text
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt renders the grounding prompt.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(promptTemplate, contextText, question)
}

// UniqueSources returns one entry per distinct source, in first-seen order.
// A unit with no source is reported as "unknown".
func UniqueSources(units []Unit) []Source {
	seen := make(map[string]struct{}, len(units))
	out := make([]Source, 0, len(units))
	for _, u := range units {
		src := u.Source
		if src == "" {
			src = u.Metadata["source"]
		}
		if src == "" {
			src = unknownSource
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, Source{Source: src})
	}
	return out
}
