package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Completer adapts a chat model to the single-prompt rag.LLM contract.
type Completer struct {
	model model.BaseChatModel
}

// NewCompleter wraps m.
func NewCompleter(m model.BaseChatModel) *Completer {
	return &Completer{model: m}
}

// Complete sends prompt as one user message and returns the reply text.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("provider: generate: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("provider: generate returned nil message")
	}
	return resp.Content, nil
}
