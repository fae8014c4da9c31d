package out

import (
	"context"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/google/uuid"
)

// CategoryRepository persists a user's category definitions.
type CategoryRepository interface {
	ListCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, error)
	// CreateCategories inserts categories in order. A name or id collision
	// returns *domain.DuplicateNameError.
	CreateCategories(ctx context.Context, userID uuid.UUID, categories ...domain.Category) error
	// DeleteCategory removes the category and rewrites the given assignments
	// in one transaction.
	DeleteCategory(ctx context.Context, userID uuid.UUID, categoryID string, reassigned []domain.Thread) error
}

// AssignmentRepository persists thread to category assignments so that a
// later deletion can find the previously classified threads.
type AssignmentRepository interface {
	ListAssignments(ctx context.Context, userID uuid.UUID) ([]domain.Thread, error)
	SaveAssignments(ctx context.Context, userID uuid.UUID, threads []domain.Thread) error
}

// CategoryStore is implemented by adapters that keep both in one database.
type CategoryStore interface {
	CategoryRepository
	AssignmentRepository
}
