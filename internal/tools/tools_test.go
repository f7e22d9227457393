package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/aiprep-go/internal/rag"
)

type fakePredictor struct {
	age, income float64
	value       float64
	err         error
}

func (f *fakePredictor) Predict(_ context.Context, age, income float64) (float64, error) {
	f.age, f.income = age, income
	return f.value, f.err
}

type fakeAsker struct {
	question string
	topK     int
	answer   *rag.Answer
	err      error
}

func (f *fakeAsker) AnswerQuestion(_ context.Context, question string, topK int) (*rag.Answer, error) {
	f.question, f.topK = question, topK
	return f.answer, f.err
}

func TestPredictTool_InvokableRun(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{value: 0.25}
	out, err := NewPredictTool(p).InvokableRun(context.Background(), `{"age": 30, "income": 50000}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prediction": 0.25}`, out)
	assert.Equal(t, 30.0, p.age)
	assert.Equal(t, 50000.0, p.income)
}

func TestPredictTool_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args string
		err  error
	}{
		{"bad json", `{`, nil},
		{"missing income", `{"age": 30}`, nil},
		{"string age", `{"age": "thirty", "income": 1}`, nil},
		{"predictor failure", `{"age": 30, "income": 1}`, errors.New("model offline")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPredictTool(&fakePredictor{err: tc.err}).InvokableRun(context.Background(), tc.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "predict_income")
		})
	}
}

func TestAskTool_InvokableRun(t *testing.T) {
	t.Parallel()

	a := &fakeAsker{answer: &rag.Answer{
		Text:    "Thirty days.",
		Sources: []rag.Source{{Source: "a.pdf"}, {Source: "b.pdf"}},
	}}
	out, err := NewAskTool(a).InvokableRun(context.Background(), `{"question": "What is the notice period?"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer": "Thirty days.", "sources": [{"source": "a.pdf"}, {"source": "b.pdf"}]}`, out)
	assert.Equal(t, "What is the notice period?", a.question)
	assert.Zero(t, a.topK, "tool should defer to the pipeline default top-K")
}

func TestAskTool_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewAskTool(&fakeAsker{}).InvokableRun(context.Background(), `{"question": "  "}`)
	assert.Error(t, err)

	_, err = NewAskTool(&fakeAsker{err: errors.New("store down")}).InvokableRun(context.Background(), `{"question": "q"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}

func TestToolInfo(t *testing.T) {
	t.Parallel()

	for _, tl := range []Tool{NewPredictTool(&fakePredictor{}), NewAskTool(&fakeAsker{})} {
		info, err := tl.Info(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tl.Name(), info.Name)
		assert.NotEmpty(t, info.Desc)
		assert.NotNil(t, info.ParamsOneOf)
	}
}

func TestAll(t *testing.T) {
	t.Parallel()

	assert.Len(t, All(&fakePredictor{}, &fakeAsker{}), 2)
	assert.Len(t, All(nil, &fakeAsker{}), 1)
	assert.Empty(t, All(nil, nil))
}
