package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "bare object",
			input:  `{"intent":"add_task","confidence":0.9}`,
			want:   `{"intent":"add_task","confidence":0.9}`,
			wantOK: true,
		},
		{
			name:   "prose around object",
			input:  "Sure! Here is the result:\n{\"intent\": \"query_tasks\"}\nLet me know.",
			want:   `{"intent": "query_tasks"}`,
			wantOK: true,
		},
		{
			name:   "code fence",
			input:  "```json\n{\"a\": {\"b\": 1}}\n```",
			want:   `{"a": {"b": 1}}`,
			wantOK: true,
		},
		{
			name:   "braces inside strings",
			input:  `note {"text": "use {curly} braces", "n": 1} end`,
			want:   `{"text": "use {curly} braces", "n": 1}`,
			wantOK: true,
		},
		{
			name:   "skips malformed first candidate",
			input:  `{not json} then {"ok": true}`,
			want:   `{"ok": true}`,
			wantOK: true,
		},
		{
			name:   "no object",
			input:  "I could not classify that.",
			wantOK: false,
		},
		{
			name:   "unterminated",
			input:  `{"intent": "add_task"`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSONObject(t *testing.T) {
	var out struct {
		Intent string `json:"intent"`
	}
	assert.True(t, DecodeJSONObject(`answer: {"intent":"add_event"}`, &out))
	assert.Equal(t, "add_event", out.Intent)
	assert.False(t, DecodeJSONObject("nothing here", &out))
}

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "thinking block",
			input: "<thinking>the user is upset</thinking>Let's look at the week together.",
			want:  "Let's look at the week together.",
		},
		{
			name:  "multiline reasoning with attributes",
			input: "Hello.\n<reasoning type=\"internal\">\nstep 1\nstep 2\n</reasoning>\nHow can we help?",
			want:  "Hello.\n\nHow can we help?",
		},
		{
			name:  "self closing",
			input: "Sounds good.<plan/> What works for everyone?",
			want:  "Sounds good. What works for everyone?",
		},
		{
			name:  "unterminated tag drops the rest",
			input: "Here is an idea. <scratchpad>private notes that never close",
			want:  "Here is an idea.",
		},
		{
			name:  "stray closing tag",
			input: "Answer text</thinking>",
			want:  "Answer text",
		},
		{
			name:  "case insensitive",
			input: "<THINKING>x</Thinking>ok",
			want:  "ok",
		},
		{
			name:  "plain text untouched",
			input: "We could plan the week on Sunday.",
			want:  "We could plan the week on Sunday.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.input))
		})
	}
}
