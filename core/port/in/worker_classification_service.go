package in

import (
	"context"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/google/uuid"
)

// ClassificationService is the engine's upward-facing API.
type ClassificationService interface {
	Classify(ctx context.Context, userID uuid.UUID, threads []domain.Thread) (*domain.ClassificationResult, error)
	ClassifyFromSource(ctx context.Context, userID uuid.UUID, source string, limit int) (*domain.ClassificationResult, error)

	ListCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, error)
	CreateCategory(ctx context.Context, userID uuid.UUID, req CreateCategoryRequest) (*domain.Category, error)
	DeleteCategory(ctx context.Context, userID uuid.UUID, categoryID string) (*domain.DeleteResult, error)

	GetRun(ctx context.Context, userID uuid.UUID, runID string) (*domain.ClassificationRun, error)
	TopSenders(ctx context.Context, userID uuid.UUID, categoryName string, limit int) ([]domain.SenderPattern, error)
}

type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color,omitempty"`
}
