package budget

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
		{"éééééééé", 2}, // 8 runes, 16 bytes
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessages(t *testing.T) {
	t.Parallel()
	msgs := []*schema.Message{
		schema.UserMessage("hello world"), // 4 overhead + 1 (role) + 2 (content) = 7
		schema.UserMessage("hello world"),
	}
	got := EstimateMessages(msgs)
	// Each message: 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	// Two messages: 14
	if got != 14 {
		t.Errorf("EstimateMessages = %d, want 14", got)
	}
}

func Test_EstimateMessages_ToolCalls(t *testing.T) {
	t.Parallel()
	msg := schema.AssistantMessage("", []schema.ToolCall{{
		Function: schema.FunctionCall{
			Name:      "predict_income",              // 14 runes -> 3
			Arguments: `{"age":30,"income":50000.0}`, // 27 runes -> 6
		},
	}})
	// 4 overhead + Estimate("assistant")=2 + 0 content + 3 + 6
	if got := EstimateMessages([]*schema.Message{msg}); got != 15 {
		t.Errorf("EstimateMessages = %d, want 15", got)
	}
}

func Test_Over(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		prompt   string
		max      int
		wantN    int
		wantOver bool
	}{
		{"empty", "", 10, 0, false},
		{"under", strings.Repeat("x", 40), 10, 10, false},
		{"over", strings.Repeat("x", 44), 10, 11, true},
		{"zero budget uses default", strings.Repeat("x", 4*6001), 0, 6001, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			n, over := Over(tc.prompt, tc.max)
			if n != tc.wantN || over != tc.wantOver {
				t.Errorf("Over = (%d, %v), want (%d, %v)", n, over, tc.wantN, tc.wantOver)
			}
		})
	}
}
