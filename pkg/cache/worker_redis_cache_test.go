package cache

import (
	"context"
	"testing"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*CategoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCategoryCache(client, ttl), mr
}

func TestCategoryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t, time.Minute)
	userID := uuid.New()

	_, ok, err := cache.GetCategories(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	cats := append(domain.BuiltinCategories(), domain.Category{ID: "travel", Name: "Travel", IsCustom: true})
	require.NoError(t, cache.SetCategories(ctx, userID, cats))
	assert.True(t, mr.Exists("categories:"+userID.String()))

	got, ok, err := cache.GetCategories(ctx, userID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 6)
	assert.Equal(t, "Travel", got[5].Name)
	assert.True(t, got[5].IsCustom)

	require.NoError(t, cache.InvalidateCategories(ctx, userID))
	_, ok, err = cache.GetCategories(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCategoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t, time.Minute)
	userID := uuid.New()

	require.NoError(t, cache.SetCategories(ctx, userID, domain.BuiltinCategories()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.GetCategories(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCategoryCache_DefaultTTL(t *testing.T) {
	cache, _ := newTestCache(t, 0)
	assert.Equal(t, DefaultTTL, cache.ttl)
}
