package classification

import (
	"context"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/idgen"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/metrics"

	"go.opentelemetry.io/otel/attribute"
)

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator decides per run whether the model is worth calling and
// always returns a total partition.
type Orchestrator struct {
	scorer *RuleScorer
	model  *ModelClassifier
	log    *logger.Logger
}

// NewOrchestrator creates an orchestrator. model may be nil, in which case
// every run is rule scored.
func NewOrchestrator(scorer *RuleScorer, model *ModelClassifier) *Orchestrator {
	return &Orchestrator{
		scorer: scorer,
		model:  model,
		log:    logger.WithField("component", "orchestrator"),
	}
}

// Scorer returns the rule scorer used for fallbacks.
func (o *Orchestrator) Scorer() *RuleScorer {
	return o.scorer
}

// Classify partitions threads across categories. The model path is used only
// when at least one custom category exists; the first ModelCap threads go
// through it and the rest are rule scored. Model failures never surface as
// errors. Only an empty category list is rejected.
func (o *Orchestrator) Classify(ctx context.Context, threads []domain.Thread, categories []domain.Category) (*domain.Partition, domain.RunStats, error) {
	start := time.Now()
	stats := domain.RunStats{Strategy: domain.StrategyRuleOnly}
	if len(categories) == 0 {
		return nil, stats, domain.ErrNoCategories
	}

	ctx, span := tracer.Start(ctx, "classification.run")
	defer span.End()

	threads = normalizeThreads(threads)
	stats.ThreadCount = len(threads)

	var assignments []assignment
	if o.model != nil && domain.HasCustom(categories) {
		stats.Strategy = domain.StrategyModelAssisted
		stats.ResponseFormat = string(o.model.config.Format)

		limit := o.model.config.ModelCap
		if limit > len(threads) {
			limit = len(threads)
		}
		assignments = o.model.classifyAll(ctx, threads[:limit], categories, &stats)
		assignments = append(assignments, o.ruleScore(threads[limit:], categories, domain.SourceOverflow)...)
	} else {
		assignments = o.ruleScore(threads, categories, domain.SourceRuleOnly)
	}

	partition := domain.NewPartition(categories)
	for _, a := range assignments {
		if !partition.Assign(a.category.Name, a.thread) {
			// The model and scorer only pick from categories, so this is a bug
			// guard: keep the partition total anyway.
			def, _ := domain.DefaultCategory(categories)
			partition.Assign(def.Name, a.thread)
			a.source = domain.SourceDefault
		}
		stats.Count(a.source, 1)
	}

	stats.Duration = time.Since(start)
	for source, n := range stats.BySource {
		metrics.IncrementClassified(string(source), n)
	}
	metrics.RecordRunDuration(string(stats.Strategy), stats.Duration)

	span.SetAttributes(
		attribute.String("run.strategy", string(stats.Strategy)),
		attribute.Int("run.threads", stats.ThreadCount),
		attribute.Int("run.batches", stats.Batches),
		attribute.Bool("run.cancelled", stats.Cancelled),
	)

	o.log.WithFields(map[string]any{
		"strategy":       stats.Strategy,
		"threads":        stats.ThreadCount,
		"batches":        stats.Batches,
		"failed_batches": stats.FailedBatches,
		"cancelled":      stats.Cancelled,
	}).WithDuration(stats.Duration).Info("classification run finished")

	return partition, stats, nil
}

func (o *Orchestrator) ruleScore(threads []domain.Thread, categories []domain.Category, source domain.AssignmentSource) []assignment {
	out := make([]assignment, 0, len(threads))
	for _, t := range threads {
		out = append(out, assignment{thread: t, category: o.scorer.Classify(t, categories), source: source})
	}
	return out
}

// normalizeThreads drops repeated ids, keeping the first occurrence, and
// gives id-less threads a fresh ULID so they never collide with a caller's
// id or with threads stored by earlier runs.
func normalizeThreads(threads []domain.Thread) []domain.Thread {
	seen := make(map[string]struct{}, len(threads))
	out := make([]domain.Thread, 0, len(threads))
	for _, t := range threads {
		if t.ID == "" {
			t.ID = idgen.NewID()
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		t.Category = ""
		out = append(out, t)
	}
	return out
}
