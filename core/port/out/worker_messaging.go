package out

import (
	"context"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/google/uuid"
)

// EventPublisher announces registry and classification changes.
type EventPublisher interface {
	PublishCategoryEvent(ctx context.Context, event *domain.CategoryEvent) error
}

// ClassifyJob asks a worker to fetch threads from a source and classify them.
type ClassifyJob struct {
	UserID uuid.UUID `json:"user_id"`
	Source string    `json:"source"`
	Limit  int       `json:"limit"`
}

// JobProducer enqueues background classification.
type JobProducer interface {
	PublishClassify(ctx context.Context, job *ClassifyJob) error
}
