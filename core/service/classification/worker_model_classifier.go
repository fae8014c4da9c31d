package classification

import (
	"context"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("classification")

// ModelClassifierConfig controls batching against the text generation service.
type ModelClassifierConfig struct {
	BatchSize     int                // threads per model call
	ModelCap      int                // threads per run that may use the model
	RetryCooldown time.Duration      // wait before the single rate-limit retry
	BatchPause    time.Duration      // pause between sequential batches
	Format        out.ResponseFormat // reply format requested from the model
	Temperature   float32
	MaxTokens     int
}

// DefaultModelClassifierConfig returns the default batching settings.
func DefaultModelClassifierConfig() ModelClassifierConfig {
	return ModelClassifierConfig{
		BatchSize:     5,
		ModelCap:      50,
		RetryCooldown: 2 * time.Second,
		BatchPause:    500 * time.Millisecond,
		Format:        out.ResponseFormatLines,
		Temperature:   0.2,
		MaxTokens:     400,
	}
}

func (c ModelClassifierConfig) normalized() ModelClassifierConfig {
	def := DefaultModelClassifierConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.ModelCap < 0 {
		c.ModelCap = 0
	}
	if c.Format == "" {
		c.Format = def.Format
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	return c
}

// assignment is one thread's outcome inside a run.
type assignment struct {
	thread   domain.Thread
	category domain.Category
	source   domain.AssignmentSource
}

// BatchResult is the outcome of one model batch. Categories and Sources line
// up with the batch; every position is filled.
type BatchResult struct {
	Categories []domain.Category
	Sources    []domain.AssignmentSource
	Retried    bool
	// Err is the generator or parse error that sent the whole batch to the
	// rule scorer, nil when the model reply was used.
	Err      error
	Problems []*domain.ModelResponseParseError
}

// ModelClassifier asks a hosted model to classify small batches of threads
// and falls back to the rule scorer for anything the model did not settle.
type ModelClassifier struct {
	gen    out.TextGenerator
	scorer *RuleScorer
	config ModelClassifierConfig
	sleep  func(ctx context.Context, d time.Duration) error
	log    *logger.Logger
}

// NewModelClassifier creates a model classifier.
func NewModelClassifier(gen out.TextGenerator, scorer *RuleScorer, config ModelClassifierConfig) *ModelClassifier {
	return &ModelClassifier{
		gen:    gen,
		scorer: scorer,
		config: config.normalized(),
		sleep:  sleepContext,
		log:    logger.WithField("component", "model_classifier"),
	}
}

// Config returns the effective configuration.
func (c *ModelClassifier) Config() ModelClassifierConfig {
	return c.config
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ClassifyBatch classifies at most one batch. It never returns an error:
// failures degrade to rule scoring, per item or for the whole batch.
func (c *ModelClassifier) ClassifyBatch(ctx context.Context, batch []domain.Thread, categories []domain.Category) *BatchResult {
	ctx, span := tracer.Start(ctx, "classification.batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(batch)))

	result := &BatchResult{
		Categories: make([]domain.Category, len(batch)),
		Sources:    make([]domain.AssignmentSource, len(batch)),
	}
	if len(batch) == 0 {
		return result
	}

	req := out.GenerateRequest{
		System:      buildSystemPrompt(c.config.Format),
		Prompt:      buildBatchPrompt(batch, categories, c.config.Format),
		Format:      c.config.Format,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}

	reply, err := c.generate(ctx, req)
	if err != nil && domain.IsRateLimit(err) {
		result.Retried = true
		c.log.Warn("rate limited, retrying batch of %d in %v", len(batch), c.config.RetryCooldown)
		if waitErr := c.sleep(ctx, c.config.RetryCooldown); waitErr != nil {
			err = waitErr
		} else {
			reply, err = c.generate(ctx, req)
		}
	}
	if err != nil {
		c.fallbackBatch(result, batch, categories, err)
		span.SetStatus(codes.Error, err.Error())
		if domain.IsRateLimit(err) {
			metrics.IncrementBatch("rate_limited")
		} else {
			metrics.IncrementBatch("failed")
		}
		return result
	}

	parsed, err := parseReply(reply, c.config.Format, len(batch), categories)
	if err != nil {
		c.fallbackBatch(result, batch, categories, err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncrementBatch("failed")
		return result
	}

	result.Problems = parsed.problems
	for i, t := range batch {
		if cat, ok := parsed.assigned[i]; ok {
			result.Categories[i] = cat
			result.Sources[i] = domain.SourceModel
			continue
		}
		result.Categories[i] = c.scorer.Classify(t, categories)
		result.Sources[i] = domain.SourceItemFallback
	}
	if len(parsed.problems) > 0 {
		c.log.WithField("problems", len(parsed.problems)).Debug("model reply had unusable lines")
	}

	if result.Retried {
		metrics.IncrementBatch("retried_ok")
	} else {
		metrics.IncrementBatch("ok")
	}
	span.SetAttributes(attribute.Int("batch.model_assigned", len(parsed.assigned)))
	return result
}

func (c *ModelClassifier) generate(ctx context.Context, req out.GenerateRequest) (string, error) {
	start := time.Now()
	reply, err := c.gen.Generate(ctx, req)
	status := "ok"
	switch {
	case err == nil:
	case domain.IsRateLimit(err):
		status = "rate_limited"
	default:
		status = "error"
	}
	metrics.RecordModelCall(string(req.Format), status, time.Since(start))
	return reply, err
}

func (c *ModelClassifier) fallbackBatch(result *BatchResult, batch []domain.Thread, categories []domain.Category, err error) {
	result.Err = err
	c.log.WithError(err).Warn("batch of %d fell back to rule scoring", len(batch))
	for i, t := range batch {
		result.Categories[i] = c.scorer.Classify(t, categories)
		result.Sources[i] = domain.SourceBatchFallback
	}
}

// classifyAll runs threads through the model in sequential batches. A
// cancelled context stops the loop between batches and the remainder is
// rule scored.
func (c *ModelClassifier) classifyAll(ctx context.Context, threads []domain.Thread, categories []domain.Category, stats *domain.RunStats) []assignment {
	results := make([]assignment, 0, len(threads))
	size := c.config.BatchSize

	for start := 0; start < len(threads); start += size {
		if start > 0 {
			_ = c.sleep(ctx, c.config.BatchPause)
		}
		if ctx.Err() != nil {
			stats.Cancelled = true
			for _, t := range threads[start:] {
				results = append(results, assignment{thread: t, category: c.scorer.Classify(t, categories), source: domain.SourceCancelled})
			}
			c.log.Warn("run cancelled, %d threads rule scored", len(threads)-start)
			break
		}

		end := start + size
		if end > len(threads) {
			end = len(threads)
		}
		batch := threads[start:end]
		res := c.ClassifyBatch(ctx, batch, categories)

		stats.Batches++
		if res.Retried {
			stats.Retries++
		}
		if res.Err != nil {
			stats.FailedBatches++
			if domain.IsUpstreamUnavailable(res.Err) && ctx.Err() == nil {
				stats.UpstreamUnavailable = true
			}
		}
		for i, t := range batch {
			results = append(results, assignment{thread: t, category: res.Categories[i], source: res.Sources[i]})
		}
	}
	return results
}
