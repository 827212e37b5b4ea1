package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"
)

// RepeatMemory remembers recently classified messages. Observe records text
// and intent and reports whether the same normalized text already resolved
// to the same intent within the window. Check and record are atomic.
type RepeatMemory interface {
	Observe(ctx context.Context, text, intent string, at time.Time) (bool, error)
}

// NormalizeText lower-cases text, drops punctuation and collapses spaces.
func NormalizeText(text string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

type recent struct {
	text   string
	intent string
	at     time.Time
}

// LocalMemory is an in-process RepeatMemory holding at most capacity entries.
type LocalMemory struct {
	mu       sync.Mutex
	entries  []recent
	capacity int
	window   time.Duration
}

func NewLocalMemory(capacity int, window time.Duration) *LocalMemory {
	if capacity <= 0 {
		capacity = 16
	}
	return &LocalMemory{capacity: capacity, window: window}
}

func (m *LocalMemory) Observe(_ context.Context, text, intent string, at time.Time) (bool, error) {
	norm := NormalizeText(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	repeat := false
	kept := m.entries[:0]
	for _, e := range m.entries {
		if m.window > 0 && at.Sub(e.at) > m.window {
			continue
		}
		if e.text == norm && e.intent == intent {
			repeat = true
		}
		kept = append(kept, e)
	}
	kept = append(kept, recent{text: norm, intent: intent, at: at})
	if len(kept) > m.capacity {
		kept = kept[len(kept)-m.capacity:]
	}
	m.entries = kept
	return repeat, nil
}

// Len returns the number of remembered entries.
func (m *LocalMemory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RedisMemory shares repeat memory between assistant replicas. Each
// normalized text maps to one key holding the last intent, expiring after
// the window.
type RedisMemory struct {
	rdb    redis.UniversalClient
	prefix string
	window time.Duration
}

func NewRedisMemory(rdb redis.UniversalClient, prefix string, window time.Duration) *RedisMemory {
	if window <= 0 {
		window = 2 * time.Minute
	}
	return &RedisMemory{rdb: rdb, prefix: prefix, window: window}
}

func (m *RedisMemory) key(norm string) string {
	sum := sha256.Sum256([]byte(norm))
	return m.prefix + ":classify:" + hex.EncodeToString(sum[:8])
}

func (m *RedisMemory) Observe(ctx context.Context, text, intent string, _ time.Time) (bool, error) {
	prev, err := m.rdb.SetArgs(ctx, m.key(NormalizeText(text)), intent, redis.SetArgs{
		TTL: m.window,
		Get: true,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repeat memory: %w", err)
	}
	return prev == intent, nil
}
