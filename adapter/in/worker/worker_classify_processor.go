// Package worker consumes background classification jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/adapter/out/messaging"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// JobClassify is the stream entry type of a source classification job.
const JobClassify = "classify"

const defaultJobTimeout = 3 * time.Minute

// ClassifyProcessor runs queued source classifications.
type ClassifyProcessor struct {
	svc     in.ClassificationService
	timeout time.Duration
	log     *logger.Logger
}

var _ messaging.JobHandler = (*ClassifyProcessor)(nil)

// NewClassifyProcessor creates a processor. A zero timeout uses the default.
func NewClassifyProcessor(svc in.ClassificationService, timeout time.Duration) *ClassifyProcessor {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &ClassifyProcessor{
		svc:     svc,
		timeout: timeout,
		log:     logger.WithField("component", "classify_processor"),
	}
}

// Handle implements messaging.JobHandler. Returning an error leaves the
// entry pending for a retry, so only transient failures are returned.
func (p *ClassifyProcessor) Handle(ctx context.Context, d messaging.Delivery) error {
	log := p.log.WithFields(map[string]any{"stream": d.Stream, "id": d.ID, "type": d.Type})

	if d.Type != JobClassify {
		log.Debug("ignoring entry")
		return nil
	}

	var job out.ClassifyJob
	if err := json.Unmarshal(d.Data, &job); err != nil {
		log.WithError(err).Warn("dropping undecodable job")
		return nil
	}
	if job.UserID == uuid.Nil || job.Source == "" {
		log.Warn("dropping job without user or source")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = logger.ContextWith(ctx, d.ID, job.UserID.String())

	start := time.Now()
	result, err := p.svc.ClassifyFromSource(ctx, job.UserID, job.Source, job.Limit)
	if err != nil {
		if isPermanent(err) {
			log.WithError(err).Warn("classify job cannot succeed, dropping")
			return nil
		}
		return fmt.Errorf("classify job for %s: %w", job.Source, err)
	}

	log.WithContext(ctx).WithFields(map[string]any{
		"run_id":   result.RunID,
		"threads":  result.Stats.ThreadCount,
		"strategy": result.Stats.Strategy,
	}).WithDuration(time.Since(start)).Info("classify job done")
	return nil
}

// isPermanent reports errors a retry cannot fix: an unknown source, a user
// who never connected it, or a registry with nothing to classify into.
func isPermanent(err error) bool {
	return domain.IsNotFound(err) || errors.Is(err, domain.ErrNoCategories)
}
