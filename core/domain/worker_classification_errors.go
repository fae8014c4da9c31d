package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoCategories is returned when classification is asked to run against
// an empty category list.
var ErrNoCategories = errors.New("no categories to classify into")

// DuplicateNameError means a category name collides with an existing one.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("category %q already exists", e.Name)
}

// ErrInvalidOAuthState is returned for unknown, expired or reused OAuth
// state values.
var ErrInvalidOAuthState = errors.New("oauth state not found or expired")

// ErrEmptyCategoryName is returned when creating a category without a name.
var ErrEmptyCategoryName = errors.New("category name must not be empty")

// NotFoundError means the referenced resource does not exist. Kind defaults
// to "category".
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "category"
	}
	return fmt.Sprintf("%s %q not found", kind, e.ID)
}

// ProtectedCategoryError is returned when deleting a built-in category.
type ProtectedCategoryError struct {
	ID string
}

func (e *ProtectedCategoryError) Error() string {
	return fmt.Sprintf("category %q is built-in and cannot be deleted", e.ID)
}

// RateLimitError signals the text generation service asked us to back off.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited: %v", e.Err)
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ModelResponseParseError describes a reply line that could not be mapped
// to a thread and category.
type ModelResponseParseError struct {
	Line   string
	Reason string
}

func (e *ModelResponseParseError) Error() string {
	return fmt.Sprintf("unparseable model reply %q: %s", e.Line, e.Reason)
}

// UpstreamUnavailableError wraps any non rate-limit failure of an external
// dependency.
type UpstreamUnavailableError struct {
	Op  string
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Err }

func IsRateLimit(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

func IsUpstreamUnavailable(err error) bool {
	var target *UpstreamUnavailableError
	return errors.As(err, &target)
}

func IsDuplicateName(err error) bool {
	var target *DuplicateNameError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsProtectedCategory(err error) bool {
	var target *ProtectedCategoryError
	return errors.As(err, &target)
}
