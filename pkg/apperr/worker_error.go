package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
)

// Error codes
const (
	// Auth errors
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeForbidden    = "FORBIDDEN"

	// Validation errors
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeMissingField     = "MISSING_FIELD"

	// Resource errors
	CodeNotFound = "NOT_FOUND"

	// Category registry errors
	CodeDuplicateName     = "DUPLICATE_NAME"
	CodeProtectedCategory = "PROTECTED_CATEGORY"
	CodeNoCategories      = "NO_CATEGORIES"
	CodeUnknownSource     = "UNKNOWN_SOURCE"

	// External errors
	CodeExternalError       = "EXTERNAL_ERROR"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"

	// Internal errors
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
	CodeTimeout       = "TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

// Auth errors
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func InvalidToken(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidToken,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// Validation errors
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func ValidationFailed(message string) *AppError {
	return &AppError{
		Code:    CodeValidationFailed,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func InvalidInput(field, reason string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("invalid input for '%s': %s", field, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

// Resource errors
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// Category registry errors
func DuplicateName(name string) *AppError {
	return &AppError{
		Code:    CodeDuplicateName,
		Message: fmt.Sprintf("category %q already exists", name),
		Status:  http.StatusConflict,
		Details: map[string]any{"name": name},
	}
}

func ProtectedCategory(id string) *AppError {
	return &AppError{
		Code:    CodeProtectedCategory,
		Message: fmt.Sprintf("category %q is built-in and cannot be deleted", id),
		Status:  http.StatusForbidden,
		Details: map[string]any{"id": id},
	}
}

func NoCategories() *AppError {
	return &AppError{
		Code:    CodeNoCategories,
		Message: "no categories to classify into",
		Status:  http.StatusUnprocessableEntity,
	}
}

func UnknownSource(name string) *AppError {
	return &AppError{
		Code:    CodeUnknownSource,
		Message: fmt.Sprintf("unknown thread source: %s", name),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"source": name},
	}
}

// External errors
func ExternalError(service string, err error) *AppError {
	return &AppError{
		Code:    CodeExternalError,
		Message: fmt.Sprintf("external service error: %s", service),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// Internal errors
func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ConfigError(message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func Timeout(operation string) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("operation timed out: %s", operation),
		Status:  http.StatusGatewayTimeout,
	}
}

// Common error instances
var (
	ErrUnauthorized = Unauthorized("")
	ErrRateLimited  = New(CodeRateLimited, "too many requests", http.StatusTooManyRequests)
)

// FromDomain maps classification domain errors onto AppErrors. Errors that
// are already AppErrors pass through; anything unknown becomes a 500.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var (
		dup       *domain.DuplicateNameError
		notFound  *domain.NotFoundError
		protected *domain.ProtectedCategoryError
		limited   *domain.RateLimitError
		upstream  *domain.UpstreamUnavailableError
	)
	switch {
	case errors.As(err, &dup):
		return DuplicateName(dup.Name).WithError(err)
	case errors.As(err, &protected):
		return ProtectedCategory(protected.ID).WithError(err)
	case errors.As(err, &notFound):
		if notFound.Kind == "thread source" {
			return UnknownSource(notFound.ID).WithError(err)
		}
		return NotFound(kindOrDefault(notFound.Kind)).WithDetail("id", notFound.ID).WithError(err)
	case errors.Is(err, domain.ErrEmptyCategoryName):
		return MissingField("name").WithError(err)
	case errors.Is(err, domain.ErrInvalidOAuthState):
		return InvalidInput("state", "unknown or expired").WithError(err)
	case errors.Is(err, domain.ErrNoCategories):
		return NoCategories().WithError(err)
	case errors.As(err, &limited):
		e := New(CodeRateLimited, "upstream rate limit reached", http.StatusTooManyRequests).WithError(err)
		if limited.RetryAfter > 0 {
			e.WithDetail("retry_after_seconds", int(limited.RetryAfter.Seconds()))
		}
		return e
	case errors.As(err, &upstream):
		return &AppError{
			Code:    CodeUpstreamUnavailable,
			Message: fmt.Sprintf("%s is unavailable", upstream.Op),
			Status:  http.StatusServiceUnavailable,
			Err:     err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout("request").WithError(err)
	}
	return InternalWithError(err)
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return "category"
	}
	return kind
}
