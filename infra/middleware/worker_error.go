package middleware

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/apperr"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler is the centralized Fiber error handler. Domain errors
// returned by handlers are mapped through apperr.FromDomain.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("request_id").(string)

		response := ErrorResponse{
			Success:   false,
			RequestID: requestID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		var status int
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
			response.Error = ErrorDetail{
				Code:    mapHTTPStatusToCode(fe.Code),
				Message: fe.Message,
			}
		} else {
			appErr := apperr.FromDomain(err)
			status = appErr.Status
			response.Error = ErrorDetail{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			}

			log := logger.WithField("request_id", requestID).
				WithField("error_code", appErr.Code).
				WithError(err)
			if status >= 500 {
				log.Error("Internal error: %s", appErr.Message)
			} else {
				log.Warn("Client error: %s", appErr.Message)
			}
		}

		if retry, ok := response.Error.Details["retry_after_seconds"].(int); ok {
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", retry))
		}
		return c.Status(status).JSON(response)
	}
}

// RequestID middleware adds a unique request ID to each request
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Locals("request_id", requestID)
		c.Set("X-Request-ID", requestID)
		return c.Next()
	}
}

// RequestLogger logs each request once it completes.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		requestID, _ := c.Locals("request_id").(string)
		status := c.Response().StatusCode()
		if err != nil {
			// The error handler has not run yet; report what it will send.
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = apperr.FromDomain(err).Status
			}
		}

		elapsed := time.Since(start)
		// Route templates keep label cardinality bounded.
		metrics.RecordHTTPRequestDuration(c.Method(), c.Route().Path, strconv.Itoa(status), elapsed)

		log := logger.WithFields(map[string]any{
			"request_id": requestID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"ip":         c.IP(),
		}).WithDuration(elapsed)

		if uid, ok := c.Locals("user_id").(uuid.UUID); ok {
			log = log.WithField("user_id", uid.String())
		}

		switch {
		case status >= 500:
			log.Error("%s %s -> %d", c.Method(), c.Path(), status)
		case status >= 400:
			log.Warn("%s %s -> %d", c.Method(), c.Path(), status)
		default:
			log.Info("%s %s -> %d", c.Method(), c.Path(), status)
		}
		return err
	}
}

// Recover turns handler panics into 500 responses.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				requestID, _ := c.Locals("request_id").(string)
				logger.WithFields(map[string]any{
					"request_id": requestID,
					"panic":      fmt.Sprintf("%v", r),
					"path":       c.Path(),
					"method":     c.Method(),
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				err = c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
					Success:   false,
					RequestID: requestID,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
					Error: ErrorDetail{
						Code:    apperr.CodeInternalError,
						Message: "An unexpected error occurred",
					},
				})
			}
		}()
		return c.Next()
	}
}

func mapHTTPStatusToCode(status int) string {
	switch status {
	case 400:
		return apperr.CodeValidationFailed
	case 401:
		return apperr.CodeUnauthorized
	case 403:
		return apperr.CodeForbidden
	case 404:
		return apperr.CodeNotFound
	case 409:
		return apperr.CodeConflict
	case 413:
		return apperr.CodeBadRequest
	case 429:
		return apperr.CodeRateLimited
	default:
		if status >= 500 {
			return apperr.CodeInternalError
		}
		return apperr.CodeBadRequest
	}
}
