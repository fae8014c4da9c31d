package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionRuns = "classification_runs"

	// Run reports are diagnostics; they expire on their own.
	runRetention = 90 * 24 * time.Hour
)

// RunReportAdapter implements out.RunReportRepository using MongoDB.
type RunReportAdapter struct {
	collection *mongo.Collection
	retention  time.Duration
}

var _ out.RunReportRepository = (*RunReportAdapter)(nil)

// NewRunReportAdapter creates a new MongoDB run report adapter.
func NewRunReportAdapter(db *mongo.Database) *RunReportAdapter {
	return &RunReportAdapter{
		collection: db.Collection(collectionRuns),
		retention:  runRetention,
	}
}

// EnsureIndexes creates the lookup and TTL indexes.
func (a *RunReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "started_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// runDocument is the stored shape of a run. User IDs are kept as strings so
// the collection stays readable from the mongo shell.
type runDocument struct {
	ID         string          `bson:"_id"`
	UserID     string          `bson:"user_id"`
	Trigger    string          `bson:"trigger"`
	Stats      domain.RunStats `bson:"stats"`
	Counts     map[string]int  `bson:"counts"`
	DurationMS int64           `bson:"duration_ms"`
	StartedAt  time.Time       `bson:"started_at"`
	ExpiresAt  time.Time       `bson:"expires_at"`
}

func toRunDocument(run *domain.ClassificationRun, retention time.Duration) *runDocument {
	return &runDocument{
		ID:         run.ID,
		UserID:     run.UserID.String(),
		Trigger:    string(run.Trigger),
		Stats:      run.Stats,
		Counts:     run.Counts,
		DurationMS: run.Stats.Duration.Milliseconds(),
		StartedAt:  run.StartedAt.UTC(),
		ExpiresAt:  run.StartedAt.UTC().Add(retention),
	}
}

func (d *runDocument) toEntity() (*domain.ClassificationRun, error) {
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id on run %s: %w", d.ID, err)
	}
	return &domain.ClassificationRun{
		ID:        d.ID,
		UserID:    userID,
		Trigger:   domain.RunTrigger(d.Trigger),
		Stats:     d.Stats,
		Counts:    d.Counts,
		StartedAt: d.StartedAt,
	}, nil
}

// SaveRun upserts a run report by ID.
func (a *RunReportAdapter) SaveRun(ctx context.Context, run *domain.ClassificationRun) error {
	doc := toRunDocument(run, a.retention)

	_, err := a.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun loads one of the user's runs.
func (a *RunReportAdapter) GetRun(ctx context.Context, userID uuid.UUID, runID string) (*domain.ClassificationRun, error) {
	var doc runDocument
	err := a.collection.FindOne(ctx, bson.M{"_id": runID, "user_id": userID.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &domain.NotFoundError{Kind: "run", ID: runID}
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return doc.toEntity()
}

// ListRuns returns the user's most recent runs first.
func (a *RunReportAdapter) ListRuns(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ClassificationRun, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []runDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode runs: %w", err)
	}

	runs := make([]*domain.ClassificationRun, 0, len(docs))
	for i := range docs {
		run, err := docs[i].toEntity()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}
