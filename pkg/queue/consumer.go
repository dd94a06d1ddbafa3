package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoWork is returned by Dequeue when all three streams are empty.
var ErrNoWork = errors.New("queue: no work available")

// Dequeue polls high, then normal, then low for one undelivered message,
// claiming it for consumerName without blocking past block.
func (q *Queue) Dequeue(ctx context.Context, consumerName string, block time.Duration) (*Delivery, error) {
	for _, p := range priorityOrder {
		d, err := q.dequeueFrom(ctx, p, consumerName)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
	// Nothing waited immediately; block on the high-priority stream for new
	// arrivals so the Processor pool isn't hot-looping when idle.
	return q.blockOnHigh(ctx, consumerName, block)
}

func (q *Queue) dequeueFrom(ctx context.Context, p Priority, consumerName string) (*Delivery, error) {
	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.consumerGroup,
		Consumer: consumerName,
		Streams:  []string{p.streamKey(StreamPrefix), ">"},
		Count:    1,
		NoAck:    false,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: reading from %s: %w", p, err)
	}
	return firstDelivery(streams, p)
}

func (q *Queue) blockOnHigh(ctx context.Context, consumerName string, block time.Duration) (*Delivery, error) {
	streams, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.consumerGroup,
		Consumer: consumerName,
		Streams:  []string{PriorityHigh.streamKey(StreamPrefix), ">"},
		Count:    1,
		Block:    block,
		NoAck:    false,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoWork
	}
	if err != nil {
		return nil, fmt.Errorf("queue: blocking read: %w", err)
	}
	d, err := firstDelivery(streams, PriorityHigh)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNoWork
	}
	return d, nil
}

func firstDelivery(streams []redis.XStream, p Priority) (*Delivery, error) {
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			raw, ok := entry.Values["payload"].(string)
			if !ok {
				return nil, fmt.Errorf("queue: entry %s missing payload field", entry.ID)
			}
			msg, err := decodeMessage(raw)
			if err != nil {
				return nil, fmt.Errorf("queue: decoding entry %s: %w", entry.ID, err)
			}
			return &Delivery{Priority: p, StreamID: entry.ID, Message: msg}, nil
		}
	}
	return nil, nil
}

// Ack acknowledges successful processing of a delivery, removing it from
// the consumer group's pending entries list.
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.rdb.XAck(ctx, d.Priority.streamKey(StreamPrefix), q.consumerGroup, d.StreamID).Err(); err != nil {
		return fmt.Errorf("queue: acking %s: %w", d.StreamID, err)
	}
	return nil
}
