// Package orchestrator drives the investigation state machine: the Analyst
// cycle (read graph state, dispatch work orders or produce a final
// assessment), the Processor pool that drains the work-order queue, and the
// crash-recovery scan that reconciles non-terminal investigations at
// startup.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/autosint/engine/pkg/config"
	"github.com/autosint/engine/pkg/llm"
	"github.com/autosint/engine/pkg/queue"
	"github.com/autosint/engine/pkg/relstore"
	"github.com/autosint/engine/pkg/tools"
)

// Sentinel errors surfaced by the cycle driver and pool.
var (
	ErrCircuitOpen     = errors.New("orchestrator: a hard dependency circuit is open")
	ErrSafetyLimitHit  = errors.New("orchestrator: safety limit reached")
)

// Deps bundles every collaborator the orchestrator needs. Built once in
// cmd/engine/main.go and shared between the Analyst cycle driver and the
// Processor pool.
type Deps struct {
	Config *config.Config
	Rel    *relstore.Store
	Queue  *queue.Queue

	Dispatcher *tools.Dispatcher

	AnalystModel   llm.Client
	ProcessorModel llm.Client

	Logger *slog.Logger
}

// Engine owns the circuit registry shared by the Analyst cycle driver and
// the Processor pool, the safety limits both enforce, and the background
// lifecycle (pool workers, reclaimer, heartbeat) started by Start.
type Engine struct {
	deps     Deps
	breakers *circuitRegistry
	logger   *slog.Logger
	instanceID string

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pool *ProcessorPool

	recoverySem *semaphore.Weighted

	mu                  sync.Mutex
	emptyAnalystStreak  map[string]int // investigation id -> consecutive cycles with no work orders and no assessment
	allFailCycleStreak  map[string]int // investigation id -> consecutive cycles whose work orders all failed
}

// New builds an Engine from Deps and wires Dispatcher.OnHandlerError into
// the circuit registry so graph/relational outages surfaced inside a
// session's tool calls count toward SUSPENDED eligibility. Start begins the
// Processor pool and background maintenance loops.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		deps:               deps,
		breakers:           newCircuitRegistry(deps.Config.Doc.CircuitBreaker, logger),
		logger:             logger,
		instanceID:         "engine-" + uuid.NewString(),
		runCtx:             runCtx,
		cancel:             cancel,
		emptyAnalystStreak: map[string]int{},
		allFailCycleStreak: map[string]int{},
	}
	e.recoverySem = semaphore.NewWeighted(int64(deps.Config.Doc.Concurrency.ProcessorPoolSize))
	if deps.Dispatcher != nil {
		deps.Dispatcher.OnHandlerError = e.breakers.recordFromHandlerError
	}
	e.pool = newProcessorPool(e)
	return e
}

// Start launches the Processor pool, the queue reclaimer, and the startup
// crash-recovery scan. Safe to call once.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.recoverNonTerminal(ctx); err != nil {
		return fmt.Errorf("orchestrator: crash-recovery scan: %w", err)
	}

	e.pool.start(e.runCtx)

	reclaimer := queue.NewReclaimer(e.deps.Queue, e.deps.Config.Doc.Safety.HeartbeatTTL, e.instanceID+"-reclaimer", e.logger)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		reclaimer.Run(e.runCtx, e.deps.Config.Doc.Queue.ReclaimInterval)
	}()

	return nil
}

// Shutdown stops the Processor pool and background loops, waiting for
// in-flight Processor sessions to finish.
func (e *Engine) Shutdown() {
	e.cancel()
	e.pool.stop()
	e.wg.Wait()
}

// circuitOpen reports the first tripped hard-dependency circuit, if any.
func (e *Engine) circuitOpen() (string, bool) {
	return e.breakers.open()
}

// withInvestigation threads investigationID through ctx for the tool
// dispatcher (tools.WithInvestigationID) so handlers resolve the right
// HandlerContext.
func withInvestigation(ctx context.Context, investigationID string) context.Context {
	return tools.WithInvestigationID(ctx, investigationID)
}
