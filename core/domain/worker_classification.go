package domain

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentSource records which path produced a thread's category.
type AssignmentSource string

const (
	SourceModel         AssignmentSource = "model"
	SourceItemFallback  AssignmentSource = "item_fallback"
	SourceBatchFallback AssignmentSource = "batch_fallback"
	SourceRuleOnly      AssignmentSource = "rule_only"
	SourceOverflow      AssignmentSource = "overflow"
	SourceCancelled     AssignmentSource = "cancelled"
	SourceDefault       AssignmentSource = "default"
)

// RunStrategy is the path the orchestrator chose for a run.
type RunStrategy string

const (
	StrategyRuleOnly      RunStrategy = "rule_only"
	StrategyModelAssisted RunStrategy = "model_assisted"
)

// RunTrigger tells why a classification run happened.
type RunTrigger string

const (
	TriggerClassify       RunTrigger = "classify"
	TriggerRedistribution RunTrigger = "redistribution"
	TriggerJob            RunTrigger = "job"
)

// RunStats summarizes one orchestrator run.
type RunStats struct {
	Strategy            RunStrategy              `json:"strategy" bson:"strategy"`
	ResponseFormat      string                   `json:"response_format,omitempty" bson:"response_format,omitempty"`
	ThreadCount         int                      `json:"thread_count" bson:"thread_count"`
	Batches             int                      `json:"batches" bson:"batches"`
	Retries             int                      `json:"retries" bson:"retries"`
	FailedBatches       int                      `json:"failed_batches" bson:"failed_batches"`
	UpstreamUnavailable bool                     `json:"upstream_unavailable" bson:"upstream_unavailable"`
	Cancelled           bool                     `json:"cancelled" bson:"cancelled"`
	BySource            map[AssignmentSource]int `json:"by_source" bson:"by_source"`
	Duration            time.Duration            `json:"duration" bson:"duration"`
}

// Count adds n threads to a source bucket.
func (s *RunStats) Count(source AssignmentSource, n int) {
	if s.BySource == nil {
		s.BySource = make(map[AssignmentSource]int)
	}
	s.BySource[source] += n
}

// ClassificationRun is the persisted report of a run.
type ClassificationRun struct {
	ID        string         `json:"id" bson:"_id"`
	UserID    uuid.UUID      `json:"user_id" bson:"user_id"`
	Trigger   RunTrigger     `json:"trigger" bson:"trigger"`
	Stats     RunStats       `json:"stats" bson:"stats"`
	Counts    map[string]int `json:"counts" bson:"counts"`
	StartedAt time.Time      `json:"started_at" bson:"started_at"`
}

// ClassificationResult is what callers get back from a classify request.
type ClassificationResult struct {
	RunID     string     `json:"run_id"`
	Partition *Partition `json:"partition"`
	Stats     RunStats   `json:"stats"`
}

// DeleteResult is returned by a successful category deletion.
type DeleteResult struct {
	Deleted         Category   `json:"deleted"`
	Partition       *Partition `json:"partition"`
	ReassignedCount int        `json:"reassigned_count"`
	// MovedCount counts threads outside the deleted category whose bucket
	// changed when the reduced registry was re-run.
	MovedCount int    `json:"moved_count"`
	RunID      string `json:"run_id,omitempty"`
}

// SenderPattern is an observed sender to category association.
type SenderPattern struct {
	Sender   string `json:"sender"`
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Event types published on the category stream.
const (
	EventCategoryCreated         = "category.created"
	EventCategoryDeleted         = "category.deleted"
	EventClassificationCompleted = "classification.completed"
)

// CategoryEvent is published whenever the registry or assignments change.
type CategoryEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     uuid.UUID      `json:"user_id"`
	CategoryID string         `json:"category_id,omitempty"`
	RunID      string         `json:"run_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
