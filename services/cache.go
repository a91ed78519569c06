package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"wiki-knowledge-platform/internal/logger"
	"wiki-knowledge-platform/models"
)

// RedisSearchCache stores full search responses in Redis with a TTL.
// Results can be briefly stale after re-embedding; the TTL bounds that
// window, so invalidation on write is not needed.
type RedisSearchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSearchCache(client *redis.Client, ttl time.Duration) *RedisSearchCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisSearchCache{client: client, ttl: ttl}
}

func (c *RedisSearchCache) Get(ctx context.Context, key string) (*models.SearchResponse, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("search cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var resp models.SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warn("search cache entry corrupt, dropping", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, false
	}
	return &resp, true
}

func (c *RedisSearchCache) Set(ctx context.Context, key string, resp *models.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("search cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("search cache write failed", "key", key, "error", err)
	}
}
