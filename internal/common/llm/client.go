// Package llm exposes the completion service behind one interface with
// interchangeable backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"family-assistant/internal/common/config"
	"family-assistant/internal/common/metrics"
)

var (
	ErrCompletionFailed  = errors.New("COMPLETION_FAILED")
	ErrCompletionTimeout = errors.New("COMPLETION_TIMEOUT")
	ErrEmptyCompletion   = errors.New("EMPTY_COMPLETION")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the conversation sent to the completion service.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SamplingOptions controls generation. Zero values select backend defaults.
type SamplingOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// Client generates free text. Output is not guaranteed to be structured.
type Client interface {
	GenerateResponse(ctx context.Context, turns []Turn, systemInstructions string, opts SamplingOptions) (string, error)
}

// UserTurn is shorthand for a single user turn.
func UserTurn(text string) []Turn {
	return []Turn{{Role: RoleUser, Content: text}}
}

// Bounded wraps a client with a per-call timeout and latency metrics.
type Bounded struct {
	next     Client
	timeout  time.Duration
	provider string
}

func NewBounded(next Client, provider string, timeout time.Duration) *Bounded {
	return &Bounded{next: next, timeout: timeout, provider: provider}
}

func (b *Bounded) GenerateResponse(ctx context.Context, turns []Turn, system string, opts SamplingOptions) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := b.next.GenerateResponse(ctx, turns, system, opts)
	status := "success"
	switch {
	case err != nil && ctx.Err() != nil:
		status = "timeout"
		err = fmt.Errorf("%w: %v", ErrCompletionTimeout, err)
	case err != nil:
		status = "error"
		if !errors.Is(err, ErrCompletionFailed) && !errors.Is(err, ErrCompletionTimeout) {
			err = fmt.Errorf("%w: %v", ErrCompletionFailed, err)
		}
	}
	metrics.CompletionDuration.WithLabelValues(b.provider, status).Observe(time.Since(start).Seconds())
	return text, err
}

// NewFromConfig builds the backend named by cfg.Assistant.Provider, bounded
// by the assistant completion timeout.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Client, error) {
	var (
		c   Client
		err error
	)
	switch cfg.Assistant.Provider {
	case "genai", "":
		c = NewGenAIClient(cfg.APIs.GenAI)
	case "openai":
		c = NewOpenAIClient(cfg.APIs.OpenAI)
	case "anthropic":
		c = NewAnthropicClient(cfg.APIs.Anthropic)
	case "gemini":
		c, err = NewGeminiClient(ctx, cfg.APIs.Gemini)
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Assistant.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewBounded(c, cfg.Assistant.Provider, config.GetDuration(cfg.Assistant.CompletionTimeout)), nil
}
