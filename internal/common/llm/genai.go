package llm

import (
	"context"
	"fmt"
	"strings"

	"family-assistant/internal/common/config"
	commonhttp "family-assistant/internal/common/http"
)

// GenAIClient calls the in-house completion gateway over HTTP.
type GenAIClient struct {
	http  *commonhttp.Client
	model string
}

type generateRequest struct {
	Model       string  `json:"model,omitempty"`
	System      string  `json:"system,omitempty"`
	Messages    []Turn  `json:"messages"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

type generateResponse struct {
	Text     string `json:"text"`
	Response string `json:"response"`
}

func NewGenAIClient(cfg config.ProviderAPIConfig) *GenAIClient {
	return &GenAIClient{
		http:  commonhttp.NewClient(strings.TrimSuffix(cfg.BaseURL, "/"), cfg.APIKey, config.GetDuration(cfg.Timeout), 2),
		model: cfg.Model,
	}
}

func (c *GenAIClient) GenerateResponse(ctx context.Context, turns []Turn, system string, opts SamplingOptions) (string, error) {
	req := generateRequest{
		Model:       c.model,
		System:      system,
		Messages:    turns,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var resp generateResponse
	if err := c.http.PostJSON(ctx, "/api/ai/generate", req, &resp); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrCompletionTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	text := resp.Text
	if text == "" {
		text = resp.Response
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
