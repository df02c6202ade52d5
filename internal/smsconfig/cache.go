package smsconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rg/smsrelay/internal/config"
	"github.com/rg/smsrelay/internal/storage"
)

// Cache holds the configuration in force. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context) (*storage.Configuration, error)
	Set(ctx context.Context, cfg *storage.Configuration) error
	Invalidate(ctx context.Context) error
}

type MemoryCache struct {
	mu  sync.RWMutex
	cfg *storage.Configuration
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(context.Context) (*storage.Configuration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cfg == nil {
		return nil, nil
	}
	cp := *c.cfg
	return &cp, nil
}

func (c *MemoryCache) Set(_ context.Context, cfg *storage.Configuration) error {
	cp := *cfg
	c.mu.Lock()
	c.cfg = &cp
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.cfg = nil
	c.mu.Unlock()
	return nil
}

// RedisCache shares the configuration between replicas.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

const redisKey = "sms_configuration:current"

// NewRedisClient connects to redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		key:    prefix + redisKey,
		ttl:    ttl,
	}
}

func (c *RedisCache) Get(ctx context.Context) (*storage.Configuration, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached configuration: %w", err)
	}

	var cfg storage.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode cached configuration: %w", err)
	}
	return &cfg, nil
}

func (c *RedisCache) Set(ctx context.Context, cfg *storage.Configuration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache configuration: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached configuration: %w", err)
	}
	return nil
}
