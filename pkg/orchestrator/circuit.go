package orchestrator

import (
	"log/slog"
	"sync"

	"github.com/sony/gobreaker"

	"github.com/autosint/engine/pkg/apperr"
	"github.com/autosint/engine/pkg/config"
)

// circuitRegistry holds one gobreaker.CircuitBreaker per hard dependency
// target ("relational", "queue", "graph", "llm"). Direct calls the
// orchestrator makes itself (relational, queue) run through execute; graph
// and llm outages are reported from elsewhere (tools.Dispatcher.OnHandlerError,
// session.Outcome.Err) via record, since those calls happen inside the
// session loop rather than the orchestrator.
//
// A tripped breaker on any target is read by the cycle driver at the start
// of every Analyst cycle (driveAnalyst) so an investigation mid-cycle is
// suspended rather than left to
// fail turn by turn against a dependency that is already known to be down.
type circuitRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

func newCircuitRegistry(cfg config.CircuitBreakerConfig, logger *slog.Logger) *circuitRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &circuitRegistry{breakers: map[string]*gobreaker.CircuitBreaker{}, logger: logger}
	for _, target := range []string{"relational", "queue", "graph", "llm"} {
		target := target
		r.breakers[target] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        target,
			MaxRequests: cfg.HalfOpenProbes,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("orchestrator: circuit breaker state change", "target", name, "from", from, "to", to)
			},
		})
	}
	return r
}

// execute runs fn through target's breaker, classifying any resulting error
// as a hard dependency failure for accounting purposes.
func (r *circuitRegistry) execute(target string, fn func() error) error {
	b := r.breakerFor(target)
	_, err := b.Execute(func() (any, error) {
		return nil, fn()
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperr.New(apperr.KindHardDependency, target, err)
	}
	return err
}

// record feeds an out-of-band observation (a tool handler error, or a
// session's terminal Err) into target's breaker without actually invoking
// anything, so graph/llm failures surfaced deep inside a session loop still
// count toward that dependency's trip threshold.
func (r *circuitRegistry) record(target string, err error) {
	b := r.breakerFor(target)
	_, _ = b.Execute(func() (any, error) { return nil, err })
}

func (r *circuitRegistry) breakerFor(target string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[target]; ok {
		return b
	}
	// Unknown target (future dependency): build one lazily rather than
	// dropping the observation on the floor.
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: target})
	r.breakers[target] = b
	return b
}

// open reports the first target currently in the open state, if any.
func (r *circuitRegistry) open() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for target, b := range r.breakers {
		if b.State() == gobreaker.StateOpen {
			return target, true
		}
	}
	return "", false
}

// recordFromHandlerError classifies a tool handler's raw error (as surfaced
// by tools.Dispatcher.OnHandlerError) into the matching breaker.
func (r *circuitRegistry) recordFromHandlerError(err error) {
	target := apperr.TargetOf(err)
	if target == "" || !apperr.IsHardDependency(err) {
		return
	}
	r.record(target, err)
}

// recordFromSessionErr classifies a session.Outcome.Err (populated only on
// OutcomeFailed, i.e. the LLM provider call itself errored) into the "llm"
// breaker when it is a hard dependency failure.
func (r *circuitRegistry) recordFromSessionErr(err error) {
	if err == nil || !apperr.IsHardDependency(err) {
		return
	}
	target := apperr.TargetOf(err)
	if target == "" {
		target = "llm"
	}
	r.record(target, err)
}
