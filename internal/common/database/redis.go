package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant-workers/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps go-redis with the namespace used by every Redis-backed store.
type RedisClient struct {
	Client *redis.Client
	prefix string
}

func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return WrapRedis(rdb, cfg.KeyPrefix)
}

// WrapRedis adopts an existing client, e.g. one pointed at miniredis in tests.
func WrapRedis(rdb *redis.Client, prefix string) *RedisClient {
	return &RedisClient{Client: rdb, prefix: prefix}
}

// Key joins parts under the configured prefix: "<prefix>:a:b".
func (c *RedisClient) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
