package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is an optional Redis read cache for computed suggestions and
// statistics. A nil Cache (or zero TTL) disables caching with identical
// semantics.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps a Redis client with a TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) read(ctx context.Context, key string, out any) bool {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Cache) write(ctx context.Context, key string, val any) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) invalidateUser(ctx context.Context, userID int64) {
	if c == nil || c.client == nil {
		return
	}
	pattern := fmt.Sprintf("hydromate:*:%d*", userID)
	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	_ = c.client.Del(ctx, keys...).Err()
}

func suggestionsKey(userID int64) string {
	return fmt.Sprintf("hydromate:suggestions:%d", userID)
}

func statisticsKey(userID int64, periodDays int) string {
	return fmt.Sprintf("hydromate:stats:%d:%d", userID, periodDays)
}
