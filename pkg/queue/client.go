package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/autosint/engine/pkg/config"
)

// StreamPrefix namespaces the three priority streams and their shared
// consumer group under one Redis keyspace.
const StreamPrefix = "autosint:work_orders"

// Queue wraps a Redis client with the three-priority-stream model.
type Queue struct {
	rdb           *redis.Client
	consumerGroup string
	streamMaxLen  int64
}

// New connects to Redis and ensures the consumer group exists on all three
// priority streams.
func New(ctx context.Context, cfg config.QueueConfig) (*Queue, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: connecting to redis: %w", err)
	}

	q := &Queue{rdb: rdb, consumerGroup: cfg.ConsumerGroup, streamMaxLen: cfg.StreamMaxLen}
	for _, p := range priorityOrder {
		if err := q.ensureGroup(ctx, p); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (q *Queue) ensureGroup(ctx context.Context, p Priority) error {
	key := p.streamKey(StreamPrefix)
	err := q.rdb.XGroupCreateMkStream(ctx, key, q.consumerGroup, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return fmt.Errorf("queue: creating consumer group on %s: %w", key, err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists")
}

// Close releases the underlying Redis client.
func (q *Queue) Close() error {
	return q.rdb.Close()
}

// Publish adds a work-order message to one priority stream, capped at
// streamMaxLen via approximate trimming.
func (q *Queue) Publish(ctx context.Context, priority Priority, msg Message) (string, error) {
	payload, err := msg.encode()
	if err != nil {
		return "", fmt.Errorf("queue: encoding message: %w", err)
	}
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: priority.streamKey(StreamPrefix),
		MaxLen: q.streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("queue: publishing to %s: %w", priority, err)
	}
	return id, nil
}
