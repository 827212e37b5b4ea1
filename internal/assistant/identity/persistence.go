package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersistence keeps one identity per client id with a sliding TTL.
type RedisPersistence struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisPersistence(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisPersistence {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisPersistence{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (p *RedisPersistence) key(clientID string) string {
	return p.prefix + ":identity:" + clientID
}

// Load returns nil, nil when nothing is stored for clientID.
func (p *RedisPersistence) Load(ctx context.Context, clientID string) (*Identity, error) {
	raw, err := p.rdb.GetEx(ctx, p.key(clientID), p.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &id, nil
}

func (p *RedisPersistence) Save(ctx context.Context, clientID string, id Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	return p.rdb.Set(ctx, p.key(clientID), raw, p.ttl).Err()
}
