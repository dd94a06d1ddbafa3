package orchestrator

import (
	"context"
	"fmt"

	"github.com/autosint/engine/pkg/relstore"
)

// recoverNonTerminal scans every investigation not already COMPLETED or
// FAILED at startup. A process restart loses any
// in-flight Analyst or Processor session mid-turn, so ANALYST_RUNNING and
// PROCESSING cannot be trusted to resume where they left off: both are
// moved to SUSPENDED with a reason naming the stale status. SUSPENDED
// investigations found already suspended are left untouched here; they
// resume only through an explicit operator/API call once the suspending
// dependency is healthy again. PENDING investigations are fanned out onto
// goroutines bounded by recoverySem (sized to the Processor pool) so a
// restart with many queued investigations doesn't storm the graph and
// relational stores all at once.
func (e *Engine) recoverNonTerminal(ctx context.Context) error {
	investigations, err := e.deps.Rel.ListNonTerminal(ctx)
	if err != nil {
		return err
	}

	for _, inv := range investigations {
		switch inv.Status {
		case relstore.StatusAnalystRunning, relstore.StatusProcessing:
			reason := "crash recovery: process restarted mid-" + string(inv.Status)
			e.logger.Warn("orchestrator: suspending stale investigation on startup", "investigation_id", inv.ID, "status", inv.Status)
			e.suspend(ctx, inv.ID, reason)
		case relstore.StatusPending:
			id := inv.ID
			if err := e.recoverySem.Acquire(ctx, 1); err != nil {
				return err
			}
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				defer e.recoverySem.Release(1)
				e.driveAnalyst(e.runCtx, id)
			}()
		case relstore.StatusSuspended:
			// Left for explicit resumption (ResumeInvestigation).
		}
	}
	return nil
}

// ResumeInvestigation re-enters the Analyst cycle for a SUSPENDED
// investigation, typically called once an operator has confirmed the
// dependency that triggered the suspension is healthy again.
func (e *Engine) ResumeInvestigation(ctx context.Context, investigationID string) error {
	inv, err := e.getInvestigation(ctx, investigationID)
	if err != nil {
		return err
	}
	if inv.Status != relstore.StatusSuspended {
		return nil
	}
	if target, open := e.circuitOpen(); open {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, target)
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.driveAnalyst(e.runCtx, investigationID)
	}()
	return nil
}
