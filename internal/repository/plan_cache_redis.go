package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taleweaver/internal/model"
)

var _ PlanCache = (*redisPlanCache)(nil)

type redisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisPlanCache creates a Redis-backed PlanCache with the given TTL.
func NewRedisPlanCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) PlanCache {
	return &redisPlanCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisPlanCache"),
	}
}

func cacheKey(topic string) string {
	return fmt.Sprintf("plan_skeleton:%s", topic)
}

func (c *redisPlanCache) Get(ctx context.Context, topic string) (*model.PlanSkeleton, error) {
	data, err := c.client.Get(ctx, cacheKey(topic)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		c.logger.Warn("Failed to read plan cache", zap.String("topic", topic), zap.Error(err))
		return nil, fmt.Errorf("failed to read plan cache for %q: %w", topic, err)
	}

	var skeleton model.PlanSkeleton
	if err := json.Unmarshal(data, &skeleton); err != nil {
		// A corrupt entry behaves like a miss; it will be overwritten.
		c.logger.Warn("Corrupt plan cache entry", zap.String("topic", topic), zap.Error(err))
		return nil, ErrCacheMiss
	}
	return &skeleton, nil
}

func (c *redisPlanCache) Set(ctx context.Context, topic string, skeleton model.PlanSkeleton) error {
	data, err := json.Marshal(skeleton)
	if err != nil {
		return fmt.Errorf("failed to marshal plan skeleton: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(topic), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write plan cache", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("failed to write plan cache for %q: %w", topic, err)
	}
	return nil
}
