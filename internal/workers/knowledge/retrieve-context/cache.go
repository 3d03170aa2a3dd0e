package retrievecontext

import (
	"context"
	"encoding/json"
	"time"

	"assistant-workers/internal/common/database"
)

// RedisCache keeps serialized search results under "<prefix>:retrieval:<key>".
type RedisCache struct {
	rdb *database.RedisClient
}

func NewRedisCache(rdb *database.RedisClient) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*SearchResult, bool) {
	raw, err := c.rdb.Client.Get(ctx, c.rdb.Key("retrieval", key)).Bytes()
	if err != nil {
		return nil, false
	}
	var result SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, key string, result *SearchResult, ttl time.Duration) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	c.rdb.Client.Set(ctx, c.rdb.Key("retrieval", key), raw, ttl)
}
