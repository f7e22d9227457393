// Package tools exposes the prediction model and the document index to the
// agent. Each tool satisfies Eino's tool.InvokableTool interface so it can be
// registered directly with a ReAct agent, and this package's Tool interface
// so callers can log and route tool calls by name without type assertions.
package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"

	"github.com/54b3r/aiprep-go/internal/predict"
	"github.com/54b3r/aiprep-go/internal/rag"
)

// Tool is the interface that all agent tools must satisfy.
type Tool interface {
	tool.InvokableTool

	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}

// Asker answers a question from the document index.
type Asker interface {
	AnswerQuestion(ctx context.Context, question string, topK int) (*rag.Answer, error)
}

// All returns the agent's tool set. A nil dependency omits its tool.
func All(p predict.Predictor, a Asker) []tool.BaseTool {
	var out []tool.BaseTool
	if p != nil {
		out = append(out, NewPredictTool(p))
	}
	if a != nil {
		out = append(out, NewAskTool(a))
	}
	return out
}
