package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const importKeyPrefix = "import:"

// RedisDeduper remembers Idempotency-Key headers of accepted imports in Redis so
// a retried upload is not imported twice by any instance.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return importKeyPrefix + userID + ":" + key
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
}

// Remove forgets a key so a failed import may be retried.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}
