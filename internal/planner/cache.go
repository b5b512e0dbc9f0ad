package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pdfedit/internal/config"
	"pdfedit/internal/domain"
)

const cacheKeyPrefix = "pdfedit:plan:"

// Cache stores action lists for instructions that were already planned.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.ActionList, bool, error)
	Set(ctx context.Context, key string, list domain.ActionList) error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisCache{client: client, ttl: cfg.PlanTTL}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*domain.ActionList, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var list domain.ActionList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, false, fmt.Errorf("corrupt cached plan: %w", err)
	}
	return &list, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, list domain.ActionList) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKeyPrefix+key, data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
