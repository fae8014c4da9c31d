// Package messaging provides Redis Streams adapters for events and jobs.
package messaging

import (
	"context"
	"fmt"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Default stream names.
const (
	StreamCategoryEvents = "category:events"
	StreamClassifyJobs   = "classify:jobs"
)

// defaultMaxLen caps event streams; consumers that fall this far behind
// only lose history, never the registry itself.
const defaultMaxLen = 10000

// RedisProducer publishes category events and classify jobs to Redis Streams.
type RedisProducer struct {
	client      *redis.Client
	eventStream string
	jobStream   string
	maxLen      int64
}

var (
	_ out.EventPublisher = (*RedisProducer)(nil)
	_ out.JobProducer    = (*RedisProducer)(nil)
)

// NewRedisProducer creates a new RedisProducer. Empty stream names fall back
// to the defaults.
func NewRedisProducer(client *redis.Client, eventStream, jobStream string) *RedisProducer {
	if eventStream == "" {
		eventStream = StreamCategoryEvents
	}
	if jobStream == "" {
		jobStream = StreamClassifyJobs
	}
	return &RedisProducer{
		client:      client,
		eventStream: eventStream,
		jobStream:   jobStream,
		maxLen:      defaultMaxLen,
	}
}

// PublishCategoryEvent appends an event to the category event stream.
func (p *RedisProducer) PublishCategoryEvent(ctx context.Context, event *domain.CategoryEvent) error {
	return p.publish(ctx, p.eventStream, event.Type, event, p.maxLen)
}

// PublishClassify enqueues a background classification job.
func (p *RedisProducer) PublishClassify(ctx context.Context, job *out.ClassifyJob) error {
	return p.publish(ctx, p.jobStream, "classify", job, 0)
}

// publish writes {"type", "data"} to a stream. maxLen 0 keeps every entry.
func (p *RedisProducer) publish(ctx context.Context, stream, kind string, payload any, maxLen int64) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"type": kind,
			"data": string(data),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}
