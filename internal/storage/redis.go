package storage

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	StorageKey(key string) string
}

// Redis stores records in Redis with a sliding TTL refreshed on every write.
type Redis struct {
	client redisClient
	ttl    time.Duration
}

func NewRedis(client redisClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.client.StorageKey(key))
	if redis.IsNil(err) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.client.StorageKey(key), value, r.ttl)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.StorageKey(key))
}
