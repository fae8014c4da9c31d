package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOAuthStateStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := NewRedisOAuthStateStore(client)
	userID := uuid.New()

	require.NoError(t, store.StoreState(ctx, "abc", userID, time.Minute))
	assert.Error(t, store.StoreState(ctx, "", userID, time.Minute))
	assert.Error(t, store.StoreState(ctx, "x", uuid.Nil, time.Minute))

	got, err := store.ValidateState(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = store.ValidateState(ctx, "abc")
	assert.ErrorIs(t, err, ErrStateNotFound, "states are single use")

	require.NoError(t, store.StoreState(ctx, "late", userID, time.Minute))
	mr.FastForward(2 * time.Minute)
	_, err = store.ValidateState(ctx, "late")
	assert.ErrorIs(t, err, ErrStateNotFound)
}
