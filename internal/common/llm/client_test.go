package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"family-assistant/internal/common/config"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenAIClient_GenerateResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "classify", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "What tasks do I have?", req.Messages[0].Content)
		assert.Equal(t, 0.1, req.Temperature)

		_, _ = w.Write([]byte(`{"text":"{\"intent\":\"query_tasks\"}"}`))
	}))
	defer server.Close()

	c := NewGenAIClient(config.ProviderAPIConfig{BaseURL: server.URL + "/", Timeout: 5000})
	text, err := c.GenerateResponse(context.Background(), UserTurn("What tasks do I have?"), "classify", SamplingOptions{Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"query_tasks"}`, text)
}

func TestGenAIClient_Errors(t *testing.T) {
	t.Run("empty completion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"text":"  "}`))
		}))
		defer server.Close()

		c := NewGenAIClient(config.ProviderAPIConfig{BaseURL: server.URL, Timeout: 5000})
		_, err := c.GenerateResponse(context.Background(), UserTurn("hi"), "", SamplingOptions{})
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("server failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c := NewGenAIClient(config.ProviderAPIConfig{BaseURL: server.URL, Timeout: 5000})
		_, err := c.GenerateResponse(context.Background(), UserTurn("hi"), "", SamplingOptions{})
		assert.ErrorIs(t, err, ErrCompletionFailed)
	})
}

type slowClient struct{}

func (slowClient) GenerateResponse(ctx context.Context, _ []Turn, _ string, _ SamplingOptions) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type failingClient struct{}

func (failingClient) GenerateResponse(context.Context, []Turn, string, SamplingOptions) (string, error) {
	return "", errors.New("boom")
}

func TestBounded(t *testing.T) {
	_, err := NewBounded(slowClient{}, "test", 20*time.Millisecond).
		GenerateResponse(context.Background(), UserTurn("hi"), "", SamplingOptions{})
	assert.ErrorIs(t, err, ErrCompletionTimeout)

	_, err = NewBounded(failingClient{}, "test", time.Second).
		GenerateResponse(context.Background(), UserTurn("hi"), "", SamplingOptions{})
	assert.ErrorIs(t, err, ErrCompletionFailed)
}

func TestOpenAIClient_GenerateResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		messages := body["messages"].([]interface{})
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Let's plan it together."}}]
		}`))
	}))
	defer server.Close()

	c := NewOpenAIClient(config.ProviderAPIConfig{APIKey: "sk-test", BaseURL: server.URL}, openaioption.WithMaxRetries(0))
	text, err := c.GenerateResponse(context.Background(), UserTurn("hi"), "be kind", SamplingOptions{Temperature: 0.3, MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "Let's plan it together.", text)
}

func TestOpenAIClient_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	c := NewOpenAIClient(config.ProviderAPIConfig{APIKey: "sk-test", BaseURL: server.URL}, openaioption.WithMaxRetries(0))
	_, err := c.GenerateResponse(context.Background(), UserTurn("hi"), "", SamplingOptions{})
	assert.ErrorIs(t, err, ErrCompletionFailed)
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(defaultAnthropicMaxTokens), body["max_tokens"])
		assert.NotNil(t, body["system"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "What would help most this week?"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 7}
		}`))
	}))
	defer server.Close()

	c := NewAnthropicClient(config.ProviderAPIConfig{APIKey: "key", BaseURL: server.URL}, anthropicoption.WithMaxRetries(0))
	text, err := c.GenerateResponse(context.Background(), UserTurn("hi"), "be kind", SamplingOptions{})
	require.NoError(t, err)
	assert.Equal(t, "What would help most this week?", text)
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Assistant.Provider = "genai"
	cfg.Assistant.CompletionTimeout = 1000
	c, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &Bounded{}, c)

	cfg.Assistant.Provider = "openai"
	_, err = NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Assistant.Provider = "mystery"
	_, err = NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}
