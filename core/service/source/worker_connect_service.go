// Package source connects users to OAuth-backed thread sources.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/idgen"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/google/uuid"
)

const stateTTL = 10 * time.Minute

// ConnectService runs the OAuth authorization-code flow for thread sources.
type ConnectService struct {
	providers map[string]out.OAuthProvider
	states    out.OAuthStateStore
	tokens    out.TokenStore
	ids       *idgen.Generator
	log       *logger.Logger
}

// NewConnectService creates a ConnectService for the given providers.
func NewConnectService(states out.OAuthStateStore, tokens out.TokenStore, providers ...out.OAuthProvider) *ConnectService {
	byName := make(map[string]out.OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &ConnectService{
		providers: byName,
		states:    states,
		tokens:    tokens,
		ids:       idgen.NewGenerator(),
		log:       logger.WithField("component", "connect"),
	}
}

func (s *ConnectService) provider(name string) (out.OAuthProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "thread source", ID: name}
	}
	return p, nil
}

// Start issues a state for userID and returns the provider's consent URL.
func (s *ConnectService) Start(ctx context.Context, userID uuid.UUID, providerName string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}

	state, err := s.ids.Generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	if err := s.states.StoreState(ctx, state, userID, stateTTL); err != nil {
		return "", err
	}
	return p.AuthURL(state), nil
}

// Complete validates state, exchanges code and stores the token for the
// user who started the flow.
func (s *ConnectService) Complete(ctx context.Context, providerName, state, code string) (uuid.UUID, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return uuid.Nil, err
	}

	userID, err := s.states.ValidateState(ctx, state)
	if err != nil {
		return uuid.Nil, err
	}

	token, err := p.Exchange(ctx, code)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to exchange %s code: %w", providerName, err)
	}
	if err := s.tokens.SaveToken(ctx, userID, providerName, token); err != nil {
		return uuid.Nil, err
	}

	s.log.WithField("user_id", userID.String()).Info("connected %s", providerName)
	return userID, nil
}
