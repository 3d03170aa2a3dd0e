package ratelimit

import (
	"context"
	"fmt"
	"time"

	"assistant-workers/internal/common/database"
	"assistant-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// hitScript increments the counter and starts the window on the first hit.
var hitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shares windows across worker replicas.
type RedisStore struct {
	rdb *database.RedisClient
	now func() time.Time
}

func NewRedisStore(rdb *database.RedisClient) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

func (s *RedisStore) Hit(ctx context.Context, actorID string, window time.Duration) (models.RateLimitWindow, error) {
	key := s.rdb.Key("ratelimit", actorID)
	res, err := hitScript.Run(ctx, s.rdb.Client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return models.RateLimitWindow{}, fmt.Errorf("rate limit hit %s: %w", key, err)
	}
	if len(res) != 2 {
		return models.RateLimitWindow{}, fmt.Errorf("rate limit hit %s: unexpected reply %v", key, res)
	}

	return models.RateLimitWindow{
		Count:     int(res[0]),
		ResetTime: s.now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}
