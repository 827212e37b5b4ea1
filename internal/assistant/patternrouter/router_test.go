package patternrouter

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"family-assistant/internal/common/logger"
	"family-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reply(text string) Handler {
	return func(context.Context, string, *models.FamilyContext) (*models.ActionResult, error) {
		return models.Succeeded(text, nil), nil
	}
}

func re(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

func TestRouter_Route(t *testing.T) {
	rules := []Rule{
		{Name: "late", Priority: 50, Patterns: re(`(?i)hello`), Handler: reply("late")},
		{Name: "greeting", Priority: 10, Patterns: re(`(?i)^hi\b`, `(?i)^hello\b`), Handler: reply("greeting")},
		{Name: "tie-first", Priority: 20, Patterns: re(`(?i)thanks`), Handler: reply("tie-first")},
		{Name: "tie-second", Priority: 20, Patterns: re(`(?i)thanks`), Handler: reply("tie-second")},
		{Name: "broken", Priority: 30, Patterns: re(`(?i)broken`), Handler: func(context.Context, string, *models.FamilyContext) (*models.ActionResult, error) {
			return nil, errors.New("calendar unavailable")
		}},
		{Name: "panics", Priority: 40, Patterns: re(`(?i)panic`), Handler: func(context.Context, string, *models.FamilyContext) (*models.ActionResult, error) {
			panic("boom")
		}},
	}
	r, err := New(rules, logger.NewTestLogger(t))
	require.NoError(t, err)

	tests := []struct {
		name        string
		message     string
		wantHandled bool
		wantRoute   string
		wantMessage string
		wantErr     bool
	}{
		{"lower priority number wins", "hello there", true, "greeting", "greeting", false},
		{"any pattern fires the rule", "hi", true, "greeting", "greeting", false},
		{"ties keep declaration order", "thanks!", true, "tie-first", "tie-first", false},
		{"handler error is captured", "this is broken", false, "broken", "", true},
		{"handler panic is captured", "don't panic", false, "panics", "", true},
		{"no match falls back", "add a dentist appointment", false, FallbackRoute, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Route(context.Background(), tt.message, &models.FamilyContext{})
			assert.Equal(t, tt.wantHandled, res.Handled)
			assert.Equal(t, tt.wantRoute, res.Route)
			if tt.wantErr {
				assert.Error(t, res.Err)
				assert.Nil(t, res.Result)
			} else {
				assert.NoError(t, res.Err)
			}
			if tt.wantMessage != "" {
				require.NotNil(t, res.Result)
				assert.Equal(t, tt.wantMessage, res.Result.Message)
			}
		})
	}
}

func TestRouter_Deterministic(t *testing.T) {
	rules := []Rule{
		{Name: "b", Priority: 1, Patterns: re(`x`), Handler: reply("b")},
		{Name: "a", Priority: 1, Patterns: re(`x`), Handler: reply("a")},
	}
	r, err := New(rules, logger.NewNoOpLogger())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		assert.Equal(t, "b", r.Route(context.Background(), "x", nil).Route)
	}
	assert.Equal(t, []string{"b", "a"}, []string{r.Rules()[0].Name, r.Rules()[1].Name})
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{"missing name", []Rule{{Patterns: re(`x`), Handler: reply("x")}}},
		{"duplicate name", []Rule{
			{Name: "a", Patterns: re(`x`), Handler: reply("x")},
			{Name: "a", Patterns: re(`y`), Handler: reply("y")},
		}},
		{"no patterns", []Rule{{Name: "a", Handler: reply("x")}}},
		{"no handler", []Rule{{Name: "a", Patterns: re(`x`)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.rules, logger.NewNoOpLogger())
			assert.Error(t, err)
		})
	}
}
