package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/aiprep-go/internal/predict"
)

// PredictTool runs the tabular model for one person.
type PredictTool struct {
	predictor predict.Predictor
}

// predictInput is the JSON input schema for PredictTool. Pointers let a
// missing field be told apart from zero.
type predictInput struct {
	Age    *float64 `json:"age"`
	Income *float64 `json:"income"`
}

// PredictResult is the tool's JSON output.
type PredictResult struct {
	Prediction float64 `json:"prediction"`
}

// NewPredictTool constructs a PredictTool.
func NewPredictTool(p predict.Predictor) *PredictTool {
	return &PredictTool{predictor: p}
}

// Name returns the tool name registered with the agent.
func (t *PredictTool) Name() string { return "predict_income" }

// Description returns the LLM-facing description of this tool.
func (t *PredictTool) Description() string {
	return "Run the CatBoost prediction for a person with the given age and income. " +
		"Returns a JSON object with a single numeric field, prediction."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *PredictTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"age": {
				Type:     schema.Number,
				Desc:     "Age in years.",
				Required: true,
			},
			"income": {
				Type:     schema.Number,
				Desc:     "Annual income.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun parses the arguments, predicts and returns the result as JSON.
func (t *PredictTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input predictInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("predict_income: invalid input: %w", err)
	}
	if input.Age == nil || input.Income == nil {
		return "", fmt.Errorf("predict_income: age and income are required")
	}

	v, err := t.predictor.Predict(ctx, *input.Age, *input.Income)
	if err != nil {
		return "", fmt.Errorf("predict_income: %w", err)
	}
	out, err := json.Marshal(PredictResult{Prediction: v})
	if err != nil {
		return "", fmt.Errorf("predict_income: marshal result: %w", err)
	}
	return string(out), nil
}
