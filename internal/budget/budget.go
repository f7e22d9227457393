// Package budget provides prompt-size estimation for the RAG and agent
// paths. Because several LLM backends with different tokenizers are
// supported, this package uses a conservative character-based heuristic:
// 1 token ≈ 4 characters (English prose). Nothing here truncates a prompt;
// callers log a warning when the estimate exceeds the configured budget.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Fits within 8k-context models (Llama 3 8B) while leaving room for the
	// output. Override via RAG_CONTEXT_TOKENS.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s. It counts runes, not bytes,
// so accented PDF text is not over-counted.
func Estimate(s string) int {
	runes := utf8.RuneCountInString(s)
	if runes == 0 {
		return 0
	}
	return max(runes/charsPerToken, 1)
}

// EstimateMessages sums role, content and tool-call arguments over msgs,
// plus a per-message overhead of 4 tokens.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4 + Estimate(string(m.Role)) + Estimate(m.Content)
		for _, tc := range m.ToolCalls {
			total += Estimate(tc.Function.Name) + Estimate(tc.Function.Arguments)
		}
	}
	return total
}

// Over reports the estimated size of prompt and whether it exceeds
// maxTokens. A non-positive maxTokens falls back to DefaultMaxContextTokens.
func Over(prompt string, maxTokens int) (int, bool) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	n := Estimate(prompt)
	return n, n > maxTokens
}
