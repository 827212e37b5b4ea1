// Package knowledge reads family analytics from the knowledge-graph service.
// Every endpoint is read-only and independently fallible.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	commonhttp "family-assistant/internal/common/http"
	"family-assistant/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

var ErrKnowledgeFailed = errors.New("AGENT_CONTEXT_FAILED")

// Slice is one analytics payload. A nil Slice means the fetch failed.
type Slice map[string]interface{}

// Graph is the knowledge-graph collaborator.
type Graph interface {
	LaborBreakdown(ctx context.Context, familyID string) (Slice, error)
	GraphSnapshot(ctx context.Context, familyID string) (Slice, error)
	PredictiveInsights(ctx context.Context, familyID string) (Slice, error)
	Query(ctx context.Context, familyID, question string) (Slice, error)
}

// Client calls the knowledge-graph HTTP API. Results of the fixed analytics
// endpoints are cached in Redis when a cache is configured.
type Client struct {
	http     *commonhttp.Client
	cache    redis.UniversalClient
	prefix   string
	cacheTTL time.Duration
	timeout  time.Duration
	logger   logger.Logger
}

type Option func(*Client)

// WithCache enables read-through caching of analytics slices.
func WithCache(rdb redis.UniversalClient, prefix string, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = rdb
		c.prefix = prefix
		c.cacheTTL = ttl
	}
}

func NewClient(httpClient *commonhttp.Client, timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		http:    httpClient,
		timeout: timeout,
		logger:  log.With(map[string]interface{}{"component": "knowledge"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) LaborBreakdown(ctx context.Context, familyID string) (Slice, error) {
	return c.cached(ctx, "labor", familyID, "/api/knowledge-graph/labor-breakdown")
}

func (c *Client) GraphSnapshot(ctx context.Context, familyID string) (Slice, error) {
	return c.cached(ctx, "snapshot", familyID, "/api/knowledge-graph/snapshot")
}

func (c *Client) PredictiveInsights(ctx context.Context, familyID string) (Slice, error) {
	return c.cached(ctx, "predictions", familyID, "/api/knowledge-graph/predictive-insights")
}

// Query asks the graph a natural-language question. Answers are not cached.
func (c *Client) Query(ctx context.Context, familyID, question string) (Slice, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var out Slice
	body := map[string]interface{}{"familyId": familyID, "query": question}
	if err := c.http.PostJSON(ctx, "/api/knowledge-graph/query", body, &out); err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrKnowledgeFailed, err)
	}
	return out, nil
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) cached(ctx context.Context, name, familyID, path string) (Slice, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	key := c.cacheKey(name, familyID)
	if c.cache != nil {
		raw, err := c.cache.Get(ctx, key).Bytes()
		if err == nil {
			var hit Slice
			if json.Unmarshal(raw, &hit) == nil {
				return hit, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Knowledge cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	var out Slice
	if err := c.http.GetJSON(ctx, path+"?familyId="+url.QueryEscape(familyID), &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrKnowledgeFailed, name, err)
	}

	if c.cache != nil && out != nil {
		if raw, err := json.Marshal(out); err == nil {
			if err := c.cache.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil {
				c.logger.Warn("Knowledge cache write failed", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
			}
		}
	}
	return out, nil
}

func (c *Client) cacheKey(name, familyID string) string {
	prefix := c.prefix
	if prefix == "" {
		prefix = "assistant"
	}
	return prefix + ":kg:" + name + ":" + familyID
}
