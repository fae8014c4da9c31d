package category

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/service/classification"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/idgen"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/metrics"

	"github.com/google/uuid"
)

var _ in.ClassificationService = (*Service)(nil)

// Deps wires the service. Store and Orchestrator are required; the rest are
// optional and skipped when nil.
type Deps struct {
	Store        out.CategoryStore
	Orchestrator *classification.Orchestrator

	Cache    out.CategoryCache
	Events   out.EventPublisher
	Reports  out.RunReportRepository
	Patterns out.PatternStore
	Sources  []out.ThreadSource
}

// Service implements the classification use cases on top of a per-user
// Registry. Mutations for one user are serialized; different users never
// share state.
type Service struct {
	store        out.CategoryStore
	orchestrator *classification.Orchestrator
	cache        out.CategoryCache
	events       out.EventPublisher
	reports      out.RunReportRepository
	patterns     out.PatternStore
	sources      map[string]out.ThreadSource

	locks sync.Map // uuid.UUID -> *sync.Mutex
	now   func() time.Time
	ids   *idgen.Generator
	log   *logger.Logger
}

func NewService(deps Deps) *Service {
	sources := make(map[string]out.ThreadSource, len(deps.Sources))
	for _, src := range deps.Sources {
		if src != nil {
			sources[src.Name()] = src
		}
	}
	return &Service{
		store:        deps.Store,
		orchestrator: deps.Orchestrator,
		cache:        deps.Cache,
		events:       deps.Events,
		reports:      deps.Reports,
		patterns:     deps.Patterns,
		sources:      sources,
		now:          time.Now,
		ids:          idgen.NewGenerator(),
		log:          logger.WithField("component", "category_service"),
	}
}

func (s *Service) lock(userID uuid.UUID) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// =============================================================================
// Registry
// =============================================================================

// loadRegistry builds the user's registry, materializing the built-ins on
// first access.
func (s *Service) loadRegistry(ctx context.Context, userID uuid.UUID) (*Registry, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetCategories(ctx, userID)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("category cache read failed")
		} else if ok && len(cached) > 0 {
			return NewRegistry(userID, cached), nil
		}
	}

	stored, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	reg := NewRegistry(userID, stored)
	if reg.Seeded() {
		seed := reg.Categories()
		now := s.now()
		for i := range seed {
			seed[i].CreatedAt = now
		}
		if err := s.store.CreateCategories(ctx, userID, seed...); err != nil {
			return nil, fmt.Errorf("failed to seed built-in categories: %w", err)
		}
		reg = NewRegistry(userID, seed)
	}

	if s.cache != nil {
		if err := s.cache.SetCategories(ctx, userID, reg.Categories()); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("category cache write failed")
		}
	}
	return reg, nil
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCategories(ctx, userID); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("category cache invalidation failed")
	}
}

func (s *Service) ListCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, error) {
	reg, err := s.loadRegistry(ctx, userID)
	if err != nil {
		return nil, err
	}
	return reg.Categories(), nil
}

func (s *Service) CreateCategory(ctx context.Context, userID uuid.UUID, req in.CreateCategoryRequest) (*domain.Category, error) {
	unlock := s.lock(userID)
	defer unlock()

	reg, err := s.loadRegistry(ctx, userID)
	if err != nil {
		metrics.IncrementCategoryOp("create", "error")
		return nil, err
	}

	created, err := reg.Create(req.Name, req.Description, req.Color, s.now())
	if err != nil {
		metrics.IncrementCategoryOp("create", "rejected")
		return nil, err
	}

	if err := s.store.CreateCategories(ctx, userID, created); err != nil {
		metrics.IncrementCategoryOp("create", "error")
		if domain.IsDuplicateName(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	s.invalidate(ctx, userID)

	s.publish(ctx, &domain.CategoryEvent{
		Type:       domain.EventCategoryCreated,
		UserID:     userID,
		CategoryID: created.ID,
		Payload:    map[string]any{"name": created.Name},
	})
	metrics.IncrementCategoryOp("create", "ok")
	s.log.WithContext(ctx).WithField("category_id", created.ID).Info("category created")
	return &created, nil
}

// =============================================================================
// Classification
// =============================================================================

func (s *Service) Classify(ctx context.Context, userID uuid.UUID, threads []domain.Thread) (*domain.ClassificationResult, error) {
	unlock := s.lock(userID)
	defer unlock()

	return s.classifyLocked(ctx, userID, threads, domain.TriggerClassify)
}

func (s *Service) classifyLocked(ctx context.Context, userID uuid.UUID, threads []domain.Thread, trigger domain.RunTrigger) (*domain.ClassificationResult, error) {
	reg, err := s.loadRegistry(ctx, userID)
	if err != nil {
		return nil, err
	}

	startedAt := s.now()
	partition, stats, err := s.orchestrator.Classify(ctx, threads, reg.Categories())
	if err != nil {
		return nil, err
	}

	// Persisting assignments must survive a caller that already gave up.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.SaveAssignments(persistCtx, userID, partition.All()); err != nil {
		return nil, fmt.Errorf("failed to save assignments: %w", err)
	}

	runID := s.record(persistCtx, userID, trigger, partition, stats, startedAt)
	s.publish(persistCtx, &domain.CategoryEvent{
		Type:   domain.EventClassificationCompleted,
		UserID: userID,
		RunID:  runID,
		Payload: map[string]any{
			"threads":  stats.ThreadCount,
			"strategy": stats.Strategy,
		},
	})

	return &domain.ClassificationResult{RunID: runID, Partition: partition, Stats: stats}, nil
}

// ClassifyFromSource pulls the newest threads from a named source first.
func (s *Service) ClassifyFromSource(ctx context.Context, userID uuid.UUID, source string, limit int) (*domain.ClassificationResult, error) {
	src, ok := s.sources[source]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "thread source", ID: source}
	}
	threads, err := src.ListThreads(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads from %s: %w", source, err)
	}

	unlock := s.lock(userID)
	defer unlock()
	return s.classifyLocked(ctx, userID, threads, domain.TriggerJob)
}

// SourceNames lists the configured thread sources.
func (s *Service) SourceNames() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	return names
}

// =============================================================================
// Deletion and redistribution
// =============================================================================

// DeleteCategory removes a custom category and re-classifies every
// previously classified thread against the reduced registry. If the model
// is unreachable, orphaned threads go to the registry's default category
// and everything else keeps its bucket. Nothing is written when the
// category is unknown or built-in.
func (s *Service) DeleteCategory(ctx context.Context, userID uuid.UUID, categoryID string) (*domain.DeleteResult, error) {
	unlock := s.lock(userID)
	defer unlock()

	reg, err := s.loadRegistry(ctx, userID)
	if err != nil {
		metrics.IncrementCategoryOp("delete", "error")
		return nil, err
	}

	deleted, err := reg.Delete(categoryID)
	if err != nil {
		metrics.IncrementCategoryOp("delete", deleteRejection(err))
		return nil, err
	}

	previous, err := s.store.ListAssignments(ctx, userID)
	if err != nil {
		metrics.IncrementCategoryOp("delete", "error")
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	newestFirst(previous)

	startedAt := s.now()
	remaining := reg.Categories()
	partition, stats, err := s.orchestrator.Classify(ctx, previous, remaining)
	if err != nil {
		metrics.IncrementCategoryOp("delete", "error")
		return nil, err
	}
	if stats.UpstreamUnavailable {
		s.log.WithContext(ctx).Warn("model unavailable during redistribution, using default category")
		partition = assignToDefault(previous, deleted, reg)
		stats.BySource = map[domain.AssignmentSource]int{domain.SourceDefault: partition.Len()}
	}

	result := &domain.DeleteResult{Deleted: deleted, Partition: partition}
	for _, t := range previous {
		current, _ := partition.CategoryOf(t.ID)
		if strings.EqualFold(t.Category, deleted.Name) {
			result.ReassignedCount++
		} else if current != t.Category {
			result.MovedCount++
		}
	}

	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.DeleteCategory(persistCtx, userID, deleted.ID, partition.All()); err != nil {
		metrics.IncrementCategoryOp("delete", "error")
		if domain.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to delete category: %w", err)
	}
	s.invalidate(persistCtx, userID)

	if s.patterns != nil {
		if err := s.patterns.RemoveCategory(persistCtx, userID, deleted.Name); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("pattern cleanup failed")
		}
	}

	result.RunID = s.record(persistCtx, userID, domain.TriggerRedistribution, partition, stats, startedAt)
	s.publish(persistCtx, &domain.CategoryEvent{
		Type:       domain.EventCategoryDeleted,
		UserID:     userID,
		CategoryID: deleted.ID,
		RunID:      result.RunID,
		Payload: map[string]any{
			"name":             deleted.Name,
			"reassigned_count": result.ReassignedCount,
		},
	})

	metrics.IncrementCategoryOp("delete", "ok")
	s.log.WithContext(ctx).WithFields(map[string]any{
		"category_id": deleted.ID,
		"reassigned":  result.ReassignedCount,
		"moved":       result.MovedCount,
	}).Info("category deleted")
	return result, nil
}

// deleteRejection labels a refused deletion for the category_ops metric.
func deleteRejection(err error) string {
	switch {
	case domain.IsProtectedCategory(err):
		return "protected"
	case domain.IsNotFound(err):
		return "not_found"
	}
	return "rejected"
}

// newestFirst orders stored threads by ReceivedAt, newest first, so the
// model cap covers the most recent mail. Store order breaks ties and
// threads without a date go last.
func newestFirst(threads []domain.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].ReceivedAt.After(threads[j].ReceivedAt)
	})
}

// assignToDefault keeps surviving assignments and sends orphans to the
// registry default.
func assignToDefault(previous []domain.Thread, deleted domain.Category, reg *Registry) *domain.Partition {
	categories := reg.Categories()
	def := reg.Default()
	partition := domain.NewPartition(categories)
	for _, t := range previous {
		target := def.Name
		if !strings.EqualFold(t.Category, deleted.Name) {
			if c, ok := domain.FindCategoryByName(categories, t.Category); ok {
				target = c.Name
			}
		}
		partition.Assign(target, t)
	}
	return partition
}

// =============================================================================
// Reports and events
// =============================================================================

func (s *Service) record(ctx context.Context, userID uuid.UUID, trigger domain.RunTrigger, p *domain.Partition, stats domain.RunStats, startedAt time.Time) string {
	runID, err := s.ids.Generate()
	if err != nil {
		s.log.WithError(err).Warn("run id generation failed")
		return ""
	}

	if s.reports != nil {
		run := &domain.ClassificationRun{
			ID:        runID,
			UserID:    userID,
			Trigger:   trigger,
			Stats:     stats,
			Counts:    p.Counts(),
			StartedAt: startedAt,
		}
		if err := s.reports.SaveRun(ctx, run); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("run report save failed")
		}
	}

	if s.patterns != nil {
		if err := s.patterns.RecordAssignments(ctx, userID, p.All()); err != nil {
			s.log.WithContext(ctx).WithError(err).Warn("pattern recording failed")
		}
	}
	return runID
}

func (s *Service) publish(ctx context.Context, event *domain.CategoryEvent) {
	if s.events == nil {
		return
	}
	if event.ID == "" {
		event.ID = s.ids.MustGenerate()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.events.PublishCategoryEvent(ctx, event); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("event", event.Type).Warn("event publish failed")
	}
}

func (s *Service) GetRun(ctx context.Context, userID uuid.UUID, runID string) (*domain.ClassificationRun, error) {
	if s.reports == nil {
		return nil, &domain.NotFoundError{Kind: "run", ID: runID}
	}
	return s.reports.GetRun(ctx, userID, runID)
}

func (s *Service) TopSenders(ctx context.Context, userID uuid.UUID, categoryName string, limit int) ([]domain.SenderPattern, error) {
	if s.patterns == nil {
		return []domain.SenderPattern{}, nil
	}
	return s.patterns.TopSenders(ctx, userID, categoryName, limit)
}
