// Package store is the family document store: JSON documents grouped by
// collection and scoped to a family.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("DOCUMENT_NOT_FOUND")
	ErrAlreadyExists = errors.New("DOCUMENT_ALREADY_EXISTS")
	ErrStoreFailed   = errors.New("DOCUMENT_STORE_FAILED")
)

var documentNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("family-assistant/documents"))

// DocumentID derives a stable document ID from its key parts. Equal parts
// always give the same ID.
func DocumentID(parts ...string) string {
	return uuid.NewSHA1(documentNamespace, []byte(strings.Join(parts, "\x1f"))).String()
}

// Filter matches documents whose JSON contains every key/value pair.
type Filter map[string]interface{}

// QueryOptions bounds and orders a query. Results are newest first unless
// Ascending is set.
type QueryOptions struct {
	Limit     int
	Ascending bool
}

// Store is the document store contract used by action handlers.
// Create fails with ErrAlreadyExists when the collection already holds id.
type Store interface {
	Create(ctx context.Context, collection, id, familyID string, data interface{}) error
	Get(ctx context.Context, collection, id string, out interface{}) error
	Query(ctx context.Context, collection, familyID string, filter Filter, opts QueryOptions) ([]json.RawMessage, error)
	Update(ctx context.Context, collection, id string, patch map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
}

// Decode unmarshals every raw document into T.
func Decode[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d, &v); err != nil {
			return nil, fmt.Errorf("%w: decode document: %v", ErrStoreFailed, err)
		}
		out = append(out, v)
	}
	return out, nil
}
