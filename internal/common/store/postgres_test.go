package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"family-assistant/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := NewPostgresStore(db, "family_documents", time.Second)
	require.NoError(t, err)
	return s, mock
}

func TestNewPostgresStore_RejectsBadTable(t *testing.T) {
	_, err := NewPostgresStore(nil, "docs; DROP TABLE x", time.Second)
	assert.Error(t, err)
}

func TestPostgresStore_Create(t *testing.T) {
	s, mock := setupMockDB(t)

	task := models.Task{ID: "t1", FamilyID: "fam-1", Title: "Pack lunches", Status: "open"}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO family_documents (collection, id, family_id, data) VALUES ($1, $2, $3, $4::jsonb) ON CONFLICT (collection, id) DO NOTHING`)).
		WithArgs("tasks", "t1", "fam-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), "tasks", "t1", "fam-1", task))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateExisting(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectExec("INSERT INTO family_documents").
		WithArgs("tasks", "t1", "fam-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Create(context.Background(), "tasks", "t1", "fam-1", map[string]string{"title": "Pack lunches"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.NotErrorIs(t, err, ErrStoreFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentID(t *testing.T) {
	a := DocumentID("fam-1", "tasks", "buy milk")
	assert.Equal(t, a, DocumentID("fam-1", "tasks", "buy milk"))
	assert.NotEqual(t, a, DocumentID("fam-2", "tasks", "buy milk"))
	assert.NotEqual(t, DocumentID("ab", "c"), DocumentID("a", "bc"))
	assert.Len(t, a, 36)
}

func TestPostgresStore_CreateFailure(t *testing.T) {
	s, mock := setupMockDB(t)
	mock.ExpectExec("INSERT INTO family_documents").WillReturnError(errors.New("connection reset"))

	err := s.Create(context.Background(), "tasks", "t1", "fam-1", map[string]string{})
	assert.ErrorIs(t, err, ErrStoreFailed)
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM family_documents WHERE collection = $1 AND id = $2`)).
		WithArgs("providers", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"p1","name":"Martha Diaz","type":"childcare"}`)))

	var p models.Provider
	require.NoError(t, s.Get(context.Background(), "providers", "p1", &p))
	assert.Equal(t, "Martha Diaz", p.Name)

	mock.ExpectQuery("SELECT data FROM family_documents").
		WithArgs("providers", "missing").
		WillReturnError(sql.ErrNoRows)
	err := s.Get(context.Background(), "providers", "missing", &p)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Query(t *testing.T) {
	s, mock := setupMockDB(t)

	rows := sqlmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"id":"t2","title":"Book dentist","status":"open"}`)).
		AddRow([]byte(`{"id":"t1","title":"Pack lunches","status":"open"}`))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM family_documents WHERE collection = $1 AND family_id = $2 AND data @> $3::jsonb ORDER BY created_at DESC LIMIT 20`)).
		WithArgs("tasks", "fam-1", `{"status":"open"}`).
		WillReturnRows(rows)

	docs, err := s.Query(context.Background(), "tasks", "fam-1", Filter{"status": "open"}, QueryOptions{Limit: 20})
	require.NoError(t, err)

	tasks, err := Decode[models.Task](docs)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Book dentist", tasks[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAndDelete(t *testing.T) {
	s, mock := setupMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE family_documents SET data = data || $3::jsonb`)).
		WithArgs("tasks", "t1", `{"status":"done"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Update(context.Background(), "tasks", "t1", map[string]interface{}{"status": "done"}))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM family_documents WHERE collection = $1 AND id = $2`)).
		WithArgs("events", "e9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.Delete(context.Background(), "events", "e9")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
