package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore keeps documents in one JSONB table:
//
//	CREATE TABLE family_documents (
//	    collection TEXT NOT NULL,
//	    id         TEXT NOT NULL,
//	    family_id  TEXT NOT NULL,
//	    data       JSONB NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (collection, id)
//	);
type PostgresStore struct {
	db      *sql.DB
	table   string
	timeout time.Duration
}

func NewPostgresStore(db *sql.DB, table string, timeout time.Duration) (*PostgresStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid document table name %q", table)
	}
	return &PostgresStore{db: db, table: table, timeout: timeout}, nil
}

func (s *PostgresStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) Create(ctx context.Context, collection, id, familyID string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: encode document: %v", ErrStoreFailed, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (collection, id, family_id, data) VALUES ($1, $2, $3, $4::jsonb) ON CONFLICT (collection, id) DO NOTHING`, s.table)
	result, err := s.db.ExecContext(ctx, query, collection, id, familyID, string(payload))
	if err != nil {
		return fmt.Errorf("%w: insert %s/%s: %v", ErrStoreFailed, collection, id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, collection, id)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string, out interface{}) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT data FROM %s WHERE collection = $1 AND id = $2`, s.table)
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if err != nil {
		return fmt.Errorf("%w: get %s/%s: %v", ErrStoreFailed, collection, id, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s/%s: %v", ErrStoreFailed, collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection, familyID string, filter Filter, opts QueryOptions) ([]json.RawMessage, error) {
	if filter == nil {
		filter = Filter{}
	}
	containment, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: encode filter: %v", ErrStoreFailed, err)
	}

	order := "DESC"
	if opts.Ascending {
		order = "ASC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(
		`SELECT data FROM %s WHERE collection = $1 AND family_id = $2 AND data @> $3::jsonb ORDER BY created_at %s LIMIT %d`,
		s.table, order, limit,
	)
	rows, err := s.db.QueryContext(ctx, query, collection, familyID, string(containment))
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", ErrStoreFailed, collection, err)
	}
	defer rows.Close()

	var docs []json.RawMessage
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", ErrStoreFailed, collection, err)
		}
		docs = append(docs, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %v", ErrStoreFailed, collection, err)
	}
	return docs, nil
}

// Update merges patch into the stored document's top-level keys.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("%w: encode patch: %v", ErrStoreFailed, err)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE %s SET data = data || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2`, s.table)
	res, err := s.db.ExecContext(ctx, query, collection, id, string(payload))
	if err != nil {
		return fmt.Errorf("%w: update %s/%s: %v", ErrStoreFailed, collection, id, err)
	}
	return requireAffected(res, collection, id)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND id = $2`, s.table)
	res, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", ErrStoreFailed, collection, id, err)
	}
	return requireAffected(res, collection, id)
}

func requireAffected(res sql.Result, collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrStoreFailed, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return nil
}
