package out

import (
	"context"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/google/uuid"
)

// RunReportRepository stores classification run reports.
type RunReportRepository interface {
	SaveRun(ctx context.Context, run *domain.ClassificationRun) error
	GetRun(ctx context.Context, userID uuid.UUID, runID string) (*domain.ClassificationRun, error)
	ListRuns(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ClassificationRun, error)
}

// PatternStore records which senders end up in which categories.
type PatternStore interface {
	RecordAssignments(ctx context.Context, userID uuid.UUID, threads []domain.Thread) error
	RemoveCategory(ctx context.Context, userID uuid.UUID, categoryName string) error
	TopSenders(ctx context.Context, userID uuid.UUID, categoryName string, limit int) ([]domain.SenderPattern, error)
}
