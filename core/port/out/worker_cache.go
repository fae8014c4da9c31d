package out

import (
	"context"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/google/uuid"
)

// CategoryCache keeps a user's category list close to the API.
type CategoryCache interface {
	GetCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, bool, error)
	SetCategories(ctx context.Context, userID uuid.UUID, categories []domain.Category) error
	InvalidateCategories(ctx context.Context, userID uuid.UUID) error
}
