package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reclaimer periodically scans each priority stream's pending-entries list
// and reclaims entries whose owning consumer's heartbeat has expired.
type Reclaimer struct {
	q             *Queue
	minIdle       time.Duration
	consumerName  string
	logger        *slog.Logger
}

// NewReclaimer builds a Reclaimer that claims pending entries idle for at
// least minIdle, whose owning consumer's heartbeat has expired, to
// consumerName, which should be a dedicated reclaimer
// identity distinct from working Processor consumers.
func NewReclaimer(q *Queue, minIdle time.Duration, consumerName string, logger *slog.Logger) *Reclaimer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reclaimer{q: q, minIdle: minIdle, consumerName: consumerName, logger: logger}
}

// Run scans at interval until ctx is cancelled.
func (r *Reclaimer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.scanOnce(ctx)
		}
	}
}

func (r *Reclaimer) scanOnce(ctx context.Context) {
	for _, p := range priorityOrder {
		if err := r.scanStream(ctx, p); err != nil {
			r.logger.Error("queue: reclaim scan failed", "priority", p, "error", err)
		}
	}
}

func (r *Reclaimer) scanStream(ctx context.Context, p Priority) error {
	key := p.streamKey(StreamPrefix)
	pending, err := r.q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: key,
		Group:  r.q.consumerGroup,
		Start:  "-",
		End:    "+",
		Count:  100,
		Idle:   r.minIdle,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("listing pending entries: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	ids := make([]string, 0, len(pending))
	for _, entry := range pending {
		alive, err := r.q.IsAlive(ctx, entry.Consumer)
		if err != nil {
			return err
		}
		if alive {
			continue
		}
		ids = append(ids, entry.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	claimed, err := r.q.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   key,
		Group:    r.q.consumerGroup,
		Consumer: r.consumerName,
		MinIdle:  r.minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("claiming pending entries: %w", err)
	}
	if len(claimed) > 0 {
		r.logger.Warn("queue: reclaimed entries from dead consumer", "priority", p, "count", len(claimed))
	}
	return nil
}
