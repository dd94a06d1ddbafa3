package queue

import (
	"context"
	"fmt"
	"time"
)

const heartbeatKeyPrefix = "autosint:processor_heartbeat"

// Heartbeat writes a liveness key for consumerName with the given TTL.
// Called on an interval well below ttl from within a Processor's run loop;
// a goroutine isolated from the Processor's session work so a slow LLM
// call never starves the heartbeat.
func (q *Queue) Heartbeat(ctx context.Context, consumerName string, ttl time.Duration) error {
	key := heartbeatKeyPrefix + ":" + consumerName
	if err := q.rdb.Set(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("queue: writing heartbeat for %s: %w", consumerName, err)
	}
	return nil
}

// IsAlive reports whether consumerName's heartbeat key is still present.
// Absence means the TTL expired without a refresh — the consumer is
// treated as dead for reclamation purposes.
func (q *Queue) IsAlive(ctx context.Context, consumerName string) (bool, error) {
	key := heartbeatKeyPrefix + ":" + consumerName
	n, err := q.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("queue: checking heartbeat for %s: %w", consumerName, err)
	}
	return n > 0, nil
}

// RunHeartbeat refreshes consumerName's liveness key at interval until ctx
// is cancelled. interval should be well under ttl so a single missed tick
// doesn't expire the key.
func (q *Queue) RunHeartbeat(ctx context.Context, consumerName string, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = q.Heartbeat(ctx, consumerName, ttl)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = q.Heartbeat(ctx, consumerName, ttl)
		}
	}
}
