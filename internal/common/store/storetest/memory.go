// Package storetest provides an in-memory document store for tests.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"family-assistant/internal/common/store"
)

type doc struct {
	familyID string
	seq      int
	data     map[string]interface{}
}

// Memory implements store.Store. FailWith, when set, makes every call fail.
type Memory struct {
	mu       sync.Mutex
	docs     map[string]map[string]*doc
	seq      int
	FailWith error
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]*doc)}
}

func (m *Memory) Create(_ context.Context, collection, id, familyID string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	fields, err := toMap(data)
	if err != nil {
		return err
	}
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]*doc)
	}
	if _, exists := m.docs[collection][id]; exists {
		return fmt.Errorf("%w: %s/%s", store.ErrAlreadyExists, collection, id)
	}
	m.seq++
	m.docs[collection][id] = &doc{familyID: familyID, seq: m.seq, data: fields}
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string, out interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	d, ok := m.docs[collection][id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	}
	raw, _ := json.Marshal(d.data)
	return json.Unmarshal(raw, out)
}

func (m *Memory) Query(_ context.Context, collection, familyID string, filter store.Filter, opts store.QueryOptions) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	normalized, err := toMap(filter)
	if err != nil {
		return nil, err
	}

	var matched []*doc
	for _, d := range m.docs[collection] {
		if d.familyID != familyID || !contains(d.data, normalized) {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		if opts.Ascending {
			return matched[i].seq < matched[j].seq
		}
		return matched[i].seq > matched[j].seq
	})
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]json.RawMessage, 0, len(matched))
	for _, d := range matched {
		raw, _ := json.Marshal(d.data)
		out = append(out, raw)
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, patch map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	d, ok := m.docs[collection][id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	}
	normalized, err := toMap(patch)
	if err != nil {
		return err
	}
	for k, v := range normalized {
		d.data[k] = v
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}

	if _, ok := m.docs[collection][id]; !ok {
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	}
	delete(m.docs[collection], id)
	return nil
}

// Count returns the number of documents in collection.
func (m *Memory) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[collection])
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func contains(data, filter map[string]interface{}) bool {
	for k, want := range filter {
		if !reflect.DeepEqual(data[k], want) {
			return false
		}
	}
	return true
}
