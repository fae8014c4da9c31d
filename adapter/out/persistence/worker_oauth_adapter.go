package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/crypto"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

const oauthSchema = `
CREATE TABLE IF NOT EXISTS oauth_tokens (
	user_id    UUID        NOT NULL,
	provider   TEXT        NOT NULL,
	sealed     TEXT        NOT NULL,
	expiry     TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, provider)
);
`

// OAuthAdapter implements out.TokenStore using PostgreSQL. Tokens are
// sealed as a whole so access and refresh tokens never hit disk in clear.
type OAuthAdapter struct {
	db  *sqlx.DB
	enc *crypto.Encryptor
}

var _ out.TokenStore = (*OAuthAdapter)(nil)

// NewOAuthAdapter creates a new OAuthAdapter.
func NewOAuthAdapter(db *sqlx.DB, enc *crypto.Encryptor) *OAuthAdapter {
	return &OAuthAdapter{db: db, enc: enc}
}

// Migrate creates the token table when missing.
func (a *OAuthAdapter) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, oauthSchema); err != nil {
		return fmt.Errorf("failed to migrate oauth schema: %w", err)
	}
	return nil
}

// GetToken loads and unseals the user's token for provider.
func (a *OAuthAdapter) GetToken(ctx context.Context, userID uuid.UUID, provider string) (*oauth2.Token, error) {
	var sealed string
	err := a.db.GetContext(ctx, &sealed,
		`SELECT sealed FROM oauth_tokens WHERE user_id = $1 AND provider = $2`, userID, provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: provider + " connection", ID: userID.String()}
		}
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}

	var token oauth2.Token
	if err := a.enc.OpenJSON(sealed, &token); err != nil {
		return nil, fmt.Errorf("failed to unseal oauth token: %w", err)
	}
	return &token, nil
}

// SaveToken seals and upserts the token.
func (a *OAuthAdapter) SaveToken(ctx context.Context, userID uuid.UUID, provider string, token *oauth2.Token) error {
	sealed, err := a.enc.SealJSON(token)
	if err != nil {
		return fmt.Errorf("failed to seal oauth token: %w", err)
	}

	var expiry sql.NullTime
	if !token.Expiry.IsZero() {
		expiry = sql.NullTime{Time: token.Expiry, Valid: true}
	}

	query := `
		INSERT INTO oauth_tokens (user_id, provider, sealed, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			sealed = EXCLUDED.sealed,
			expiry = EXCLUDED.expiry,
			updated_at = EXCLUDED.updated_at`

	if _, err := a.db.ExecContext(ctx, query, userID, provider, sealed, expiry, time.Now()); err != nil {
		return fmt.Errorf("failed to save oauth token: %w", err)
	}
	return nil
}
