package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kindlecrm/internal/core"
)

const keyPrefix = "kcrm:session:"

// Redis stores sessions as JSON with a sliding TTL, so several dashboard
// replicas can share them.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (s *Redis) Get(ctx context.Context, id string) (*core.Upload, bool, error) {
	b, err := s.rdb.GetEx(ctx, key(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session: %w", err)
	}
	var up core.Upload
	if err := json.Unmarshal(b, &up); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	return &up, true, nil
}

func (s *Redis) Put(ctx context.Context, id string, up *core.Upload) error {
	b, err := json.Marshal(up)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, key(id), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// Ping checks the connection; used by the readiness probe.
func (s *Redis) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
