package learning

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRecorder_RecordAndTrim(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rec := NewRedisRecorder(rdb, "assistant", 2)
	ctx := context.Background()

	for _, intent := range []string{"add_task", "add_event", "query_tasks"} {
		require.NoError(t, rec.Record(ctx, Outcome{FamilyID: "fam-1", Intent: intent, Text: "x", Success: true}))
	}

	recent, err := rec.Recent(ctx, "fam-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "query_tasks", recent[0].Intent)
	assert.Equal(t, "add_event", recent[1].Intent)
	assert.NotEmpty(t, recent[0].ID)
}

func TestRedisRecorder_PushFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rec := NewRedisRecorder(db, "assistant", 10)
	fixed := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }
	rec.newID = func() string { return "outcome-1" }

	outcome := Outcome{FamilyID: "fam-1", Intent: "add_task", Text: "buy milk", Error: "store down"}
	expected := outcome
	expected.ID = "outcome-1"
	expected.RecordedAt = fixed
	payload, err := json.Marshal(expected)
	require.NoError(t, err)

	mock.ExpectLPush("assistant:learning:fam-1", string(payload)).SetErr(errors.New("connection reset"))

	err = rec.Record(context.Background(), outcome)
	assert.ErrorIs(t, err, ErrRecordFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRecorder_AnonymousKey(t *testing.T) {
	rec := NewRedisRecorder(nil, "assistant", 0)
	assert.Equal(t, "assistant:learning:anonymous", rec.Key(""))
	assert.Equal(t, int64(1000), rec.maxLen)
}
