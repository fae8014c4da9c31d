package out

import (
	"context"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ThreadSource lists a user's most recent threads, newest first.
type ThreadSource interface {
	Name() string
	ListThreads(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Thread, error)
}

// TokenStore keeps per-user OAuth tokens for thread sources. GetToken
// returns *domain.NotFoundError when the user never connected.
type TokenStore interface {
	GetToken(ctx context.Context, userID uuid.UUID, provider string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID uuid.UUID, provider string, token *oauth2.Token) error
}

// OAuthProvider is the authorization side of an OAuth thread source.
type OAuthProvider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// OAuthStateStore holds single-use state values of pending connect flows.
type OAuthStateStore interface {
	StoreState(ctx context.Context, state string, userID uuid.UUID, ttl time.Duration) error
	ValidateState(ctx context.Context, state string) (uuid.UUID, error)
}
