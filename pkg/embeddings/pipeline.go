package embeddings

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/autosint/engine/pkg/apperr"
	"github.com/autosint/engine/pkg/config"
)

// Pipeline wraps Provider with the retry policy and circuit breaker shared
// between the online write path and the backfill scanner; both go through
// one circuit breaker keyed "embedding".
type Pipeline struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
	retry    config.RetryTarget
	logger   *slog.Logger
}

// New builds a Pipeline from the embeddings/retry/circuit_breaker sections
// of engine.yaml.
func New(provider Provider, retry config.RetryTarget, cb config.CircuitBreakerConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: cb.HalfOpenProbes,
		Interval:    0,
		Timeout:     cb.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cb.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embeddings: circuit breaker state change", "breaker", name, "from", from, "to", to)
		},
	}
	return &Pipeline{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		retry:    retry,
		logger:   logger,
	}
}

// Embed issues one batched embedding call for texts, retrying through the
// configured backoff policy and circuit breaker. On exhaustion it returns
// a *apperr.Error classified KindSoftDependency, which callers use to fall
// back to embedding_pending = true rather than failing the whole write.
func (p *Pipeline) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retry.InitialBackoff
	bo.MaxInterval = p.retry.MaxBackoff
	bo.Multiplier = p.retry.Multiplier
	if !p.retry.Jitter {
		bo.RandomizationFactor = 0
	}
	policy := backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(p.retry.MaxAttempts-1))

	var out [][]float32
	op := func() error {
		result, err := p.breaker.Execute(func() (any, error) {
			return p.provider.Embed(ctx, texts)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return backoff.Permanent(apperr.New(apperr.KindSoftDependency, "embedding", err))
			}
			return err
		}
		out = result.([][]float32)
		return nil
	}

	if err := backoff.Retry(op, policy); err != nil {
		if _, ok := err.(*apperr.Error); ok {
			return nil, err
		}
		return nil, apperr.New(apperr.KindSoftDependency, "embedding", err)
	}
	return out, nil
}

// EntityLister is the narrow graph capability the backfill scanner
// depends on; cmd/engine wires an adapter over pkg/graph.Store's entity
// backfill query. Claims and relationships have no equivalent backfill
// queue yet.
type EntityLister interface {
	ListEmbeddingPending(ctx context.Context, limit int) ([]EmbeddingTarget, error)
	UpdateEmbedding(ctx context.Context, id string, vector []float32) error
}

// EmbeddingTarget is one record awaiting a vector, abstracted over entity/
// claim/relationship so the backfill loop is written once.
type EmbeddingTarget struct {
	ID   string
	Text string
}

// RunBackfill drains the embedding_pending queue at the configured
// interval until ctx is cancelled. batchSize bounds how many pending
// records are embedded per provider call.
func (p *Pipeline) RunBackfill(ctx context.Context, interval time.Duration, batchSize int, lister EntityLister) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.backfillOnce(ctx, batchSize, lister)
		}
	}
}

func (p *Pipeline) backfillOnce(ctx context.Context, batchSize int, lister EntityLister) {
	targets, err := lister.ListEmbeddingPending(ctx, batchSize)
	if err != nil {
		p.logger.Error("embeddings: backfill list failed", "error", err)
		return
	}
	if len(targets) == 0 {
		return
	}

	texts := make([]string, len(targets))
	for i, t := range targets {
		texts[i] = t.Text
	}

	vectors, err := p.Embed(ctx, texts)
	if err != nil {
		p.logger.Warn("embeddings: backfill batch deferred, provider unavailable", "count", len(targets), "error", err)
		return
	}

	for i, t := range targets {
		if i >= len(vectors) || len(vectors[i]) == 0 {
			continue
		}
		if err := lister.UpdateEmbedding(ctx, t.ID, vectors[i]); err != nil {
			p.logger.Error("embeddings: backfill write failed", "id", t.ID, "error", err)
		}
	}
	p.logger.Info("embeddings: backfill batch completed", "count", len(targets))
}
