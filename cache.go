package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PayloadCache stores raw Enka payloads by UID. Get reports a miss with ok=false and a nil error.
type PayloadCache interface {
	Get(ctx context.Context, uid string) (payload []byte, ok bool, err error)
	Set(ctx context.Context, uid string, payload []byte, ttl time.Duration) error
}

// RedisCache is a PayloadCache backed by Redis. Entries expire with the TTL passed to Set.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and checks the connection with PING.
func NewRedisCache(ctx context.Context, cfg CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return &RedisCache{client: client}, nil
}

func cacheKey(uid string) string { return "enka:uid:" + uid }

func (c *RedisCache) Get(ctx context.Context, uid string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, cacheKey(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached payload: %w", err)
	}
	return data, true, nil
}

func (c *RedisCache) Set(ctx context.Context, uid string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, cacheKey(uid), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set cached payload: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (noopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
