// Package cache keeps per-user category lists in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	categoryKeyPrefix = "categories:"
	DefaultTTL        = 10 * time.Minute
)

// RedisCache is a JSON key/value cache on Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetJSON decodes the value at key into dest. A missing key is not an error.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores value as JSON.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete removes keys.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// CategoryCache implements out.CategoryCache.
type CategoryCache struct {
	cache *RedisCache
	ttl   time.Duration
}

var _ out.CategoryCache = (*CategoryCache)(nil)

// NewCategoryCache creates a category cache. A zero ttl uses DefaultTTL.
func NewCategoryCache(client *redis.Client, ttl time.Duration) *CategoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CategoryCache{cache: NewRedisCache(client), ttl: ttl}
}

func categoryKey(userID uuid.UUID) string {
	return categoryKeyPrefix + userID.String()
}

func (c *CategoryCache) GetCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, bool, error) {
	var categories []domain.Category
	ok, err := c.cache.GetJSON(ctx, categoryKey(userID), &categories)
	if err != nil {
		return nil, false, fmt.Errorf("category cache get: %w", err)
	}
	if !ok || len(categories) == 0 {
		return nil, false, nil
	}
	return categories, true, nil
}

func (c *CategoryCache) SetCategories(ctx context.Context, userID uuid.UUID, categories []domain.Category) error {
	if err := c.cache.SetJSON(ctx, categoryKey(userID), categories, c.ttl); err != nil {
		return fmt.Errorf("category cache set: %w", err)
	}
	return nil
}

func (c *CategoryCache) InvalidateCategories(ctx context.Context, userID uuid.UUID) error {
	return c.cache.Delete(ctx, categoryKey(userID))
}
