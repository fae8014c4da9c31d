package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"duplicate", &domain.DuplicateNameError{Name: "Work"}, CodeDuplicateName, http.StatusConflict},
		{"wrapped duplicate", fmt.Errorf("failed to create: %w", &domain.DuplicateNameError{Name: "Work"}), CodeDuplicateName, http.StatusConflict},
		{"not found", &domain.NotFoundError{ID: "work"}, CodeNotFound, http.StatusNotFound},
		{"unknown source", &domain.NotFoundError{Kind: "thread source", ID: "pop3"}, CodeUnknownSource, http.StatusBadRequest},
		{"protected", &domain.ProtectedCategoryError{ID: "important"}, CodeProtectedCategory, http.StatusForbidden},
		{"oauth state", domain.ErrInvalidOAuthState, CodeInvalidInput, http.StatusBadRequest},
		{"empty name", domain.ErrEmptyCategoryName, CodeMissingField, http.StatusBadRequest},
		{"no categories", domain.ErrNoCategories, CodeNoCategories, http.StatusUnprocessableEntity},
		{"rate limit", &domain.RateLimitError{RetryAfter: 2 * time.Second}, CodeRateLimited, http.StatusTooManyRequests},
		{"upstream", &domain.UpstreamUnavailableError{Op: "gmail", Err: errors.New("503")}, CodeUpstreamUnavailable, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, CodeTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDomain(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.status, got.Status)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestFromDomain_PassesAppErrorThrough(t *testing.T) {
	orig := BadRequest("bad")
	assert.Same(t, orig, FromDomain(fmt.Errorf("wrap: %w", orig)))
	assert.Nil(t, FromDomain(nil))
}

func TestFromDomain_RetryAfterDetail(t *testing.T) {
	got := FromDomain(&domain.RateLimitError{RetryAfter: 3 * time.Second})
	assert.Equal(t, 3, got.Details["retry_after_seconds"])
}
