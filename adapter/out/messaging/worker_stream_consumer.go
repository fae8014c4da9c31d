package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Delivery is one stream entry handed to a JobHandler.
type Delivery struct {
	ID     string
	Stream string
	Type   string
	Data   []byte
}

// JobHandler processes stream entries. A returned error leaves the entry
// pending so it is retried after PendingIdleTime.
type JobHandler interface {
	Handle(ctx context.Context, d Delivery) error
}

// JobHandlerFunc adapts a function to JobHandler.
type JobHandlerFunc func(ctx context.Context, d Delivery) error

func (f JobHandlerFunc) Handle(ctx context.Context, d Delivery) error { return f(ctx, d) }

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Group    string
	Consumer string
	Streams  []string
	Handler  JobHandler
	Logger   zerolog.Logger

	// Concurrency bounds how many entries of one read are handled at once.
	Concurrency          int
	Count                int64
	Block                time.Duration
	PendingCheckInterval time.Duration
	PendingIdleTime      time.Duration
	MaxRetries           int64
}

func (c *ConsumerConfig) withDefaults() ConsumerConfig {
	cfg := *c
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.PendingCheckInterval <= 0 {
		cfg.PendingCheckInterval = 30 * time.Second
	}
	if cfg.PendingIdleTime <= 0 {
		cfg.PendingIdleTime = 2 * time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return cfg
}

// Consumer reads entries from Redis Streams through a consumer group.
type Consumer struct {
	client *redis.Client
	cfg    ConsumerConfig
	log    zerolog.Logger
}

// NewConsumer creates a new Consumer.
func NewConsumer(client *redis.Client, cfg *ConsumerConfig) *Consumer {
	resolved := cfg.withDefaults()
	return &Consumer{
		client: client,
		cfg:    resolved,
		log:    resolved.Logger.With().Str("group", resolved.Group).Str("consumer", resolved.Consumer).Logger(),
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Strs("streams", c.cfg.Streams).Msg("starting consumer")

	for _, stream := range c.cfg.Streams {
		if err := c.EnsureGroup(ctx, stream); err != nil {
			c.log.Warn().Err(err).Str("stream", stream).Msg("error creating consumer group")
		}
	}

	go c.reclaimLoop(ctx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, err := c.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error().Err(err).Msg("error reading from streams")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if n > 0 {
			c.log.Debug().Int("messages", n).Msg("processed batch")
		}
	}
}

// EnsureGroup creates the consumer group and stream when missing.
func (c *Consumer) EnsureGroup(ctx context.Context, stream string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Poll reads one batch, handles it and acks what succeeded. It returns the
// number of entries read.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	if len(c.cfg.Streams) == 0 {
		return 0, nil
	}

	args := make([]string, len(c.cfg.Streams)*2)
	for i, stream := range c.cfg.Streams {
		args[i] = stream
		args[len(c.cfg.Streams)+i] = ">"
	}

	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  args,
		Count:    c.cfg.Count,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var entries []streamEntry
	for _, stream := range result {
		for _, msg := range stream.Messages {
			entries = append(entries, streamEntry{stream: stream.Stream, msg: msg})
		}
	}
	c.deliverAll(ctx, entries)
	return len(entries), nil
}

type streamEntry struct {
	stream string
	msg    redis.XMessage
}

// entryWorker adapts deliver to pool.Worker. deliver logs its own failures
// and leaves failed entries pending, so Do never reports an error.
type entryWorker struct {
	c *Consumer
}

func (w *entryWorker) Do(ctx context.Context, e streamEntry) error {
	w.c.deliver(ctx, e.stream, e.msg)
	return nil
}

// deliverAll handles one read. Entries are independent jobs, so a batch is
// spread over up to Concurrency workers and acked one by one.
func (c *Consumer) deliverAll(ctx context.Context, entries []streamEntry) {
	if c.cfg.Concurrency <= 1 || len(entries) <= 1 {
		for _, e := range entries {
			c.deliver(ctx, e.stream, e.msg)
		}
		return
	}

	size := c.cfg.Concurrency
	if size > len(entries) {
		size = len(entries)
	}
	wg := pool.New[streamEntry](size, &entryWorker{c: c}).WithContinueOnError()
	if err := wg.Go(ctx); err != nil {
		c.log.Error().Err(err).Msg("failed to start delivery pool")
		return
	}
	for _, e := range entries {
		wg.Submit(e)
	}
	if err := wg.Close(ctx); err != nil && ctx.Err() == nil {
		c.log.Error().Err(err).Msg("delivery pool finished with error")
	}
}

func (c *Consumer) deliver(ctx context.Context, stream string, msg redis.XMessage) {
	log := c.log.With().Str("stream", stream).Str("id", msg.ID).Logger()

	d, err := toDelivery(stream, msg)
	if err != nil {
		// Malformed entries never succeed; park them right away.
		log.Warn().Err(err).Msg("malformed stream entry")
		if err := c.deadLetter(ctx, stream, msg, err.Error()); err != nil {
			log.Error().Err(err).Msg("error moving message to DLQ")
		}
		c.ack(ctx, stream, msg.ID)
		return
	}

	if err := c.cfg.Handler.Handle(ctx, d); err != nil {
		log.Error().Err(err).Str("type", d.Type).Msg("error processing message")
		return
	}
	c.ack(ctx, stream, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, stream, id string) {
	if err := c.client.XAck(ctx, stream, c.cfg.Group, id).Err(); err != nil {
		c.log.Error().Err(err).Str("stream", stream).Str("id", id).Msg("error acknowledging message")
	}
}

func toDelivery(stream string, msg redis.XMessage) (Delivery, error) {
	raw, ok := msg.Values["data"]
	if !ok {
		return Delivery{}, fmt.Errorf("invalid message format: missing data field")
	}
	data, ok := raw.(string)
	if !ok {
		return Delivery{}, fmt.Errorf("invalid message format: data is not a string")
	}
	kind, _ := msg.Values["type"].(string)
	return Delivery{ID: msg.ID, Stream: stream, Type: kind, Data: []byte(data)}, nil
}

func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PendingCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Reclaim(ctx)
		}
	}
}

// Reclaim retries entries that stayed pending longer than PendingIdleTime
// and parks those that exhausted MaxRetries on the dead letter stream.
func (c *Consumer) Reclaim(ctx context.Context) {
	for _, stream := range c.cfg.Streams {
		pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: stream,
			Group:  c.cfg.Group,
			Start:  "-",
			End:    "+",
			Count:  100,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				c.log.Error().Err(err).Str("stream", stream).Msg("error getting pending messages")
			}
			continue
		}

		for _, p := range pending {
			if p.Idle < c.cfg.PendingIdleTime {
				continue
			}

			claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
				Stream:   stream,
				Group:    c.cfg.Group,
				Consumer: c.cfg.Consumer,
				MinIdle:  c.cfg.PendingIdleTime,
				Messages: []string{p.ID},
			}).Result()
			if err != nil {
				c.log.Error().Err(err).Str("id", p.ID).Msg("error claiming message")
				continue
			}

			for _, msg := range claimed {
				if p.RetryCount >= c.cfg.MaxRetries {
					c.log.Warn().Str("stream", stream).Str("id", p.ID).Int64("retries", p.RetryCount).
						Msg("message exceeded max retries")
					if err := c.deadLetter(ctx, stream, msg, "max retries exceeded"); err != nil {
						c.log.Error().Err(err).Str("id", p.ID).Msg("error moving message to DLQ")
						continue
					}
					c.ack(ctx, stream, msg.ID)
					continue
				}
				c.deliver(ctx, stream, msg)
			}
		}
	}
}

// DeadLetterStream names the stream that holds parked entries.
func DeadLetterStream(stream string) string {
	return "dlq:" + stream
}

func (c *Consumer) deadLetter(ctx context.Context, stream string, msg redis.XMessage, reason string) error {
	values := map[string]interface{}{
		"original_stream": stream,
		"original_id":     msg.ID,
		"reason":          reason,
		"failed_at":       time.Now().UTC().Format(time.RFC3339),
		"consumer":        c.cfg.Consumer,
	}
	for k, v := range msg.Values {
		values["original_"+k] = v
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: DeadLetterStream(stream), Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to add message to DLQ: %w", err)
	}
	return nil
}
