package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OAuthStateKey is the Redis key prefix for pending OAuth states.
const OAuthStateKey = "oauth:state:"

// ErrStateNotFound is returned for unknown, expired or reused states.
var ErrStateNotFound = domain.ErrInvalidOAuthState

// RedisOAuthStateStore binds OAuth state values to the user who started the
// connect flow.
type RedisOAuthStateStore struct {
	client *redis.Client
}

var _ out.OAuthStateStore = (*RedisOAuthStateStore)(nil)

// NewRedisOAuthStateStore creates a new RedisOAuthStateStore.
func NewRedisOAuthStateStore(client *redis.Client) *RedisOAuthStateStore {
	return &RedisOAuthStateStore{client: client}
}

// StoreState remembers state for ttl.
func (s *RedisOAuthStateStore) StoreState(ctx context.Context, state string, userID uuid.UUID, ttl time.Duration) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if userID == uuid.Nil {
		return errors.New("userID cannot be nil")
	}

	if err := s.client.Set(ctx, OAuthStateKey+state, userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store OAuth state: %w", err)
	}
	return nil
}

// ValidateState consumes state and returns its user. A state works once.
func (s *RedisOAuthStateStore) ValidateState(ctx context.Context, state string) (uuid.UUID, error) {
	if state == "" {
		return uuid.Nil, ErrStateNotFound
	}

	raw, err := s.client.GetDel(ctx, OAuthStateKey+state).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrStateNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to validate OAuth state: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid userID in state: %w", err)
	}
	return userID, nil
}
