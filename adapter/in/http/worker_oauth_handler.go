package http

import (
	"context"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/apperr"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SourceConnector runs the OAuth flow for thread sources.
// source.ConnectService implements it.
type SourceConnector interface {
	Start(ctx context.Context, userID uuid.UUID, provider string) (string, error)
	Complete(ctx context.Context, provider, state, code string) (uuid.UUID, error)
}

// OAuthHandler connects users to OAuth thread sources. The callback is
// unauthenticated; the single-use state binds it to the user who started
// the flow.
type OAuthHandler struct {
	connector SourceConnector
}

func NewOAuthHandler(connector SourceConnector) *OAuthHandler {
	return &OAuthHandler{connector: connector}
}

// Register mounts the authenticated connect route.
func (h *OAuthHandler) Register(app fiber.Router) {
	app.Get("/sources/:provider/connect", h.Connect)
}

// RegisterCallback mounts the public callback route.
func (h *OAuthHandler) RegisterCallback(app fiber.Router) {
	app.Get("/sources/:provider/callback", h.Callback)
}

// Connect GET /sources/:provider/connect
func (h *OAuthHandler) Connect(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, apperr.ErrUnauthorized)
	}

	url, err := h.connector.Start(requestContext(c, userID), userID, c.Params("provider"))
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{"auth_url": url})
}

// Callback GET /sources/:provider/callback?state=...&code=...
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	provider := c.Params("provider")

	if errParam := c.Query("error"); errParam != "" {
		logger.WithField("provider", provider).Warn("authorization denied: %s", errParam)
		return ErrorResponse(c, apperr.Forbidden("authorization was denied"))
	}

	state, code := c.Query("state"), c.Query("code")
	if state == "" {
		return ErrorResponse(c, apperr.MissingField("state"))
	}
	if code == "" {
		return ErrorResponse(c, apperr.MissingField("code"))
	}

	userID, err := h.connector.Complete(c.UserContext(), provider, state, code)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, fiber.Map{
		"connected": true,
		"provider":  provider,
		"user_id":   userID,
	})
}
