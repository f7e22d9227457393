// Package agent wires the Eino ReAct agent to the prediction and document
// tools. The agent decides when to call predict_income or ask_docs and when
// to answer directly; its planning is left entirely to the model.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/aiprep-go/internal/budget"
	"github.com/54b3r/aiprep-go/internal/logging"
)

// systemPrompt is injected ahead of every query.
const systemPrompt = `You are a helpful assistant with two tools.
- predict_income runs a regression model for a person given their age and annual income.
- ask_docs answers questions from the indexed documents and returns the sources it used.
Call a tool whenever the question needs a prediction or facts from the documents.
Never invent a prediction or a source. Reply concisely.`

// defaultMaxStep bounds the ReAct loop (model and tool nodes both count).
const defaultMaxStep = 12

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// ChatModel is the tool-calling LLM built by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the list of tools available to the agent.
	Tools []tool.BaseTool

	// MaxStep bounds the ReAct loop. Defaults to 12 if zero.
	MaxStep int

	// ContextTokens is the estimated input budget. Queries over it are
	// logged, not truncated. Zero disables the check.
	ContextTokens int
}

// Agent answers free-form queries with the ReAct loop.
type Agent struct {
	react         *react.Agent
	contextTokens int
}

// New constructs an Agent from the provided Config.
func New(ctx context.Context, cfg *Config) (*Agent, error) {
	if cfg == nil || cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	maxStep := cfg.MaxStep
	if maxStep <= 0 {
		maxStep = defaultMaxStep
	}

	ra, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cfg.ChatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: cfg.Tools,
		},
		MaxStep: maxStep,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: failed to create ReAct agent: %w", err)
	}
	return &Agent{react: ra, contextTokens: cfg.ContextTokens}, nil
}

// Run sends query through the ReAct loop and returns the content of the
// final assistant message.
func (a *Agent) Run(ctx context.Context, query string) (string, error) {
	log := logging.FromContext(ctx)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("agent: query must not be empty")
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(query),
	}
	if a.contextTokens > 0 {
		if n := budget.EstimateMessages(messages); n > a.contextTokens {
			log.Warn("budget: agent input exceeds context budget",
				slog.Int("estimated_tokens", n),
				slog.Int("budget_tokens", a.contextTokens),
			)
		}
	}

	start := time.Now()
	msg, err := a.react.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("agent: generate failed: %w", err)
	}
	log.Debug("agent: query complete", slog.Duration("duration", time.Since(start)))
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}
