// Package search indexes family providers in Elasticsearch for free-text
// lookup.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"family-assistant/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrSearchFailed = errors.New("SEARCH_FAILED")

// ProviderIndex stores and queries provider documents.
type ProviderIndex struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
}

func NewProviderIndex(es *elasticsearch.Client, index string, timeout time.Duration) *ProviderIndex {
	return &ProviderIndex{es: es, index: index, timeout: timeout}
}

func (p *ProviderIndex) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// Index upserts provider by id.
func (p *ProviderIndex) Index(ctx context.Context, provider models.Provider) error {
	body, err := json.Marshal(provider)
	if err != nil {
		return fmt.Errorf("%w: encode provider: %v", ErrSearchFailed, err)
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	req := esapi.IndexRequest{
		Index:      p.index,
		DocumentID: provider.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, p.es)
	if err != nil {
		return fmt.Errorf("%w: index provider: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: index provider: %s", ErrSearchFailed, res.Status())
	}
	return nil
}

// Search returns the family's providers matching text and, when set,
// providerType. An empty text matches all of the family's providers.
func (p *ProviderIndex) Search(ctx context.Context, familyID, text, providerType string, size int) ([]models.Provider, error) {
	if size <= 0 || size > 100 {
		size = 20
	}

	filters := []map[string]interface{}{
		{"term": map[string]interface{}{"familyId.keyword": familyID}},
	}
	if providerType != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"type.keyword": providerType}})
	}

	boolQuery := map[string]interface{}{"filter": filters}
	if text = strings.TrimSpace(text); text != "" {
		boolQuery["must"] = []map[string]interface{}{{
			"multi_match": map[string]interface{}{
				"query":     text,
				"fields":    []string{"name^3", "type^2", "specialty", "childName", "notes"},
				"fuzziness": "AUTO",
			},
		}}
	}

	body, err := json.Marshal(map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"bool": boolQuery},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrSearchFailed, err)
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	res, err := p.es.Search(
		p.es.Search.WithContext(ctx),
		p.es.Search.WithIndex(p.index),
		p.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search query failed: %s", ErrSearchFailed, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Provider `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchFailed, err)
	}

	out := make([]models.Provider, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
