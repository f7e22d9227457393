package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/aiprep-go/internal/tools"
)

// scriptedModel replays canned responses in order and records every input.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	err       error
	inputs    [][]*schema.Message
	toolNames []string
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return schema.AssistantMessage("done", nil), nil
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range infos {
		m.toolNames = append(m.toolNames, info.Name)
	}
	return m, nil
}

type fixedPredictor struct{ calls int }

func (p *fixedPredictor) Predict(_ context.Context, _, _ float64) (float64, error) {
	p.calls++
	return 0.5, nil
}

func TestNew_RequiresModel(t *testing.T) {
	if _, err := New(context.Background(), &Config{}); err == nil {
		t.Fatal("expected error for nil ChatModel")
	}
	if _, err := New(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRun_DirectAnswer(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("Hello.", nil)}}
	a, err := New(context.Background(), &Config{ChatModel: m})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := a.Run(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "Hello." {
		t.Errorf("got %q, want %q", got, "Hello.")
	}
	first := m.inputs[0]
	if first[0].Role != schema.System || !strings.Contains(first[0].Content, "predict_income") {
		t.Errorf("first message should be the system prompt, got %+v", first[0])
	}
	if last := first[len(first)-1]; last.Role != schema.User || last.Content != "hi" {
		t.Errorf("last input message should be the query, got %+v", last)
	}
}

func TestRun_CallsTool(t *testing.T) {
	p := &fixedPredictor{}
	m := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{{
			ID:   "call-1",
			Type: "function",
			Function: schema.FunctionCall{
				Name:      "predict_income",
				Arguments: `{"age": 30, "income": 50000}`,
			},
		}}),
		schema.AssistantMessage("The prediction is 0.5.", nil),
	}}

	a, err := New(context.Background(), &Config{
		ChatModel: m,
		Tools:     []tool.BaseTool{tools.NewPredictTool(p)},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := a.Run(context.Background(), "What is the prediction for a 30 year old earning 50000?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "The prediction is 0.5." {
		t.Errorf("got %q", got)
	}
	if p.calls != 1 {
		t.Errorf("predictor calls: got %d, want 1", p.calls)
	}
	if len(m.toolNames) != 1 || m.toolNames[0] != "predict_income" {
		t.Errorf("tools bound to model: %v", m.toolNames)
	}

	// The second model call must see the tool result.
	second := m.inputs[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Role != schema.Tool || !strings.Contains(toolMsg.Content, `"prediction":0.5`) {
		t.Errorf("expected tool result as last input, got %+v", toolMsg)
	}
}

func TestRun_Errors(t *testing.T) {
	m := &scriptedModel{err: errors.New("connection refused")}
	a, err := New(context.Background(), &Config{ChatModel: m})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := a.Run(context.Background(), "  "); err == nil {
		t.Error("expected error for empty query")
	}
	_, err = a.Run(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected wrapped model error, got %v", err)
	}
}
