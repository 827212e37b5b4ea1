// Package learning keeps a bounded log of dispatch outcomes so that
// misclassified phrasings can be reviewed and fed back into routing rules.
package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrRecordFailed = errors.New("LEARNING_RECORD_FAILED")

// Outcome is one dispatched request and how it ended.
type Outcome struct {
	ID         string    `json:"id"`
	FamilyID   string    `json:"familyId,omitempty"`
	Intent     string    `json:"intent"`
	Text       string    `json:"text"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Recorder accepts outcomes. Implementations may be slow or fail; the
// dispatcher calls them off the request path.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// NopRecorder discards outcomes.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Outcome) error { return nil }

// RedisRecorder pushes outcomes onto a capped Redis list per family.
type RedisRecorder struct {
	rdb    redis.UniversalClient
	prefix string
	maxLen int64
	now    func() time.Time
	newID  func() string
}

func NewRedisRecorder(rdb redis.UniversalClient, prefix string, maxLen int64) *RedisRecorder {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &RedisRecorder{
		rdb:    rdb,
		prefix: prefix,
		maxLen: maxLen,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

func (r *RedisRecorder) Key(familyID string) string {
	if familyID == "" {
		familyID = "anonymous"
	}
	return r.prefix + ":learning:" + familyID
}

func (r *RedisRecorder) Record(ctx context.Context, outcome Outcome) error {
	if outcome.ID == "" {
		outcome.ID = r.newID()
	}
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = r.now()
	}

	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrRecordFailed, err)
	}

	key := r.Key(outcome.FamilyID)
	if err := r.rdb.LPush(ctx, key, string(payload)).Err(); err != nil {
		return fmt.Errorf("%w: push: %v", ErrRecordFailed, err)
	}
	if err := r.rdb.LTrim(ctx, key, 0, r.maxLen-1).Err(); err != nil {
		return fmt.Errorf("%w: trim: %v", ErrRecordFailed, err)
	}
	return nil
}

// Recent returns up to n of the family's newest outcomes.
func (r *RedisRecorder) Recent(ctx context.Context, familyID string, n int64) ([]Outcome, error) {
	raw, err := r.rdb.LRange(ctx, r.Key(familyID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: range: %v", ErrRecordFailed, err)
	}

	out := make([]Outcome, 0, len(raw))
	for _, item := range raw {
		var o Outcome
		if err := json.Unmarshal([]byte(item), &o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
