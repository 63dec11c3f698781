package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"barledger/backend/internal/domain"
)

type RedisTotalsCache struct {
	client *redis.Client
}

func NewRedisTotalsCache(addr string, password string, db int) *RedisTotalsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTotalsCache{client: client}
}

func (c *RedisTotalsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTotalsCache) Close() error {
	return c.client.Close()
}

func (c *RedisTotalsCache) Get(ctx context.Context, key string) (*domain.CurrentTotalsResponse, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var resp domain.CurrentTotalsResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

func (c *RedisTotalsCache) Set(ctx context.Context, key string, value *domain.CurrentTotalsResponse, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisTotalsCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
