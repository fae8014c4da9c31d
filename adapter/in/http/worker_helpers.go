// Package http exposes the classification engine over a fiber REST API.
package http

import (
	"context"
	"errors"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/apperr"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("unauthorized")

// GetUserID safely extracts user_id from fiber context
// Returns error if not authenticated
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	userIDVal := c.Locals("user_id")
	if userIDVal == nil {
		return uuid.Nil, ErrUnauthorized
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUnauthorized
	}
	return userID, nil
}

// requestContext carries request_id and user_id into service logs.
func requestContext(c *fiber.Ctx, userID uuid.UUID) context.Context {
	requestID, _ := c.Locals("request_id").(string)
	return logger.ContextWith(c.UserContext(), requestID, userID.String())
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// APIError represents a standard API error
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse maps err onto a status and the standard error envelope.
func ErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperr.FromDomain(err)
	if appErr.Status >= 500 {
		logger.WithContext(c.UserContext()).WithError(err).Error("%s %s failed", c.Method(), c.Path())
	}
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(appErr.Status).JSON(APIResponse{
		Success:   false,
		Error:     &APIError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SuccessResponse sends a standardized JSON success response
func SuccessResponse(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusOK, data)
}

// CreatedResponse sends 201 with the standard envelope.
func CreatedResponse(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusCreated, data)
}

// AcceptedResponse sends 202 with the standard envelope.
func AcceptedResponse(c *fiber.Ctx, data any) error {
	return respond(c, fiber.StatusAccepted, data)
}

func respond(c *fiber.Ctx, status int, data any) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// queryLimit reads ?limit= clamped to [1, max].
func queryLimit(c *fiber.Ctx, def, max int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
