package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// AskTool queries the document index and returns a grounded answer.
type AskTool struct {
	asker Asker
}

type askInput struct {
	Question string `json:"question"`
}

// NewAskTool constructs an AskTool.
func NewAskTool(a Asker) *AskTool {
	return &AskTool{asker: a}
}

// Name returns the tool name registered with the agent.
func (t *AskTool) Name() string { return "ask_docs" }

// Description returns the LLM-facing description of this tool.
func (t *AskTool) Description() string {
	return "Query the document index and return an answer with its sources. " +
		"Use this for any question about the indexed documents or dataset."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *AskTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"question": {
				Type:     schema.String,
				Desc:     "Natural language question for the document index.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun answers the question with the pipeline's default top-K and
// returns {"answer","sources"} as JSON.
func (t *AskTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input askInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("ask_docs: invalid input: %w", err)
	}
	if strings.TrimSpace(input.Question) == "" {
		return "", fmt.Errorf("ask_docs: question is required")
	}

	ans, err := t.asker.AnswerQuestion(ctx, input.Question, 0)
	if err != nil {
		return "", fmt.Errorf("ask_docs: %w", err)
	}
	out, err := json.Marshal(ans)
	if err != nil {
		return "", fmt.Errorf("ask_docs: marshal result: %w", err)
	}
	return string(out), nil
}
