// Package http provides the JSON-over-HTTP client shared by the completion
// gateway and knowledge-graph collaborators.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrRequestTimeout = errors.New("REQUEST_TIMEOUT")
	ErrRequestFailed  = errors.New("REQUEST_FAILED")
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
}

func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: maxRetries,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON posts body to path and decodes the JSON response into out.
// Non-2xx responses and transport errors are retried with exponential
// backoff starting at 100ms.
func (c *Client) PostJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrRequestFailed, err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

// GetJSON issues a GET to path and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ErrRequestTimeout
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRequestFailed, err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			if resp != nil {
				resp.Body.Close()
			}
			return ErrRequestTimeout
		}
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}

		err = decode(resp, out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrRequestFailed, err)
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrRequestFailed, lastErr)
}

func decode(resp *http.Response, out interface{}) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
