package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/autosint/engine/pkg/apperr"
	"github.com/autosint/engine/pkg/llm"
	"github.com/autosint/engine/pkg/queue"
	"github.com/autosint/engine/pkg/relstore"
	"github.com/autosint/engine/pkg/session"
)

// emptySessionRetryLimit is the fixed number of consecutive empty Analyst
// sessions (no work orders, no assessment) tolerated before the next cycle
// is forced into force-final mode. This is a hard invariant of the
// investigation loop, not an operational tuning knob like
// SafetyConfig.ConsecutiveAllFailLimit (which governs the unrelated
// all-fail-cycle -> FAILED rule), so it is not exposed in engine.yaml.
const emptySessionRetryLimit = 2

// StartInvestigation creates a new investigation in PENDING status and
// begins its first Analyst cycle in the background. It returns as soon as
// the row is durably persisted: every transition durably updates the
// relational store before any external side effect.
func (e *Engine) StartInvestigation(ctx context.Context, prompt string, parentID *string) (string, error) {
	id := uuid.NewString()
	if err := e.breakers.execute("relational", func() error {
		return e.deps.Rel.CreateInvestigation(ctx, id, prompt, parentID)
	}); err != nil {
		return "", fmt.Errorf("orchestrator: creating investigation: %w", err)
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.driveAnalyst(e.runCtx, id)
	}()
	return id, nil
}

// driveAnalyst runs exactly one Analyst session for investigationID and
// acts on its outcome. It is invoked for a PENDING investigation's first
// cycle and again by the Processor pool once every work order in a cycle
// has reached a terminal state, moving PROCESSING back to ANALYST_RUNNING.
func (e *Engine) driveAnalyst(ctx context.Context, investigationID string) {
	if target, open := e.circuitOpen(); open {
		e.suspend(ctx, investigationID, fmt.Sprintf("circuit open on %s", target))
		return
	}

	inv, err := e.getInvestigation(ctx, investigationID)
	if err != nil {
		e.logger.Error("orchestrator: fetching investigation for analyst cycle", "investigation_id", investigationID, "error", err)
		return
	}

	forceFinal := inv.CycleCount >= e.deps.Config.Doc.Safety.MaxCyclesPerInvestigation ||
		e.emptyStreakAt(investigationID) >= emptySessionRetryLimit ||
		e.failStreakAt(investigationID) >= e.deps.Config.Doc.Safety.ConsecutiveAllFailLimit

	if err := e.transition(ctx, investigationID, relstore.StatusAnalystRunning); err != nil {
		e.logger.Error("orchestrator: transitioning to analyst_running", "investigation_id", investigationID, "error", err)
		return
	}

	outcome := e.runAnalystSession(ctx, inv, forceFinal)
	e.breakers.recordFromSessionErr(outcome.Err)

	switch {
	case outcome.Kind == session.OutcomeFailed && apperr.IsHardDependency(outcome.Err):
		e.suspend(ctx, investigationID, "analyst session failed against a hard dependency: "+outcome.Err.Error())

	case outcome.Kind == session.OutcomeFailed:
		e.fail(ctx, investigationID, "analyst session failed: "+outcome.Err.Error())

	case outcome.AssessmentProduced != nil:
		e.resetStreaks(investigationID)
		e.completeWithAssessment(ctx, investigationID, outcome.AssessmentProduced)

	case len(outcome.WorkOrdersCreated) > 0:
		e.resetEmptyStreak(investigationID)
		e.dispatchCycle(ctx, investigationID, outcome.WorkOrdersCreated)

	case forceFinal:
		// Force-final mode ran and still produced neither a work order nor
		// an assessment (malformed-call limit, max turns): nothing further
		// to try, fail the investigation rather than loop forever.
		e.fail(ctx, investigationID, "force-final analyst session produced no assessment")

	default:
		e.bumpEmptyStreak(investigationID)
		e.driveAnalyst(ctx, investigationID)
	}
}

// runAnalystSession builds the Analyst's system prompt and initial message
// for inv's current cycle and runs one session to completion.
func (e *Engine) runAnalystSession(ctx context.Context, inv *relstore.Investigation, forceFinal bool) *session.Outcome {
	promptName := "analyst"
	if forceFinal {
		promptName = "analyst_force_final"
	}
	system, _ := e.deps.Config.Prompt(promptName)

	return session.Run(withInvestigation(ctx, inv.ID), session.Config{
		Role:                    session.RoleAnalyst,
		System:                  system,
		Initial:                 analystInitialMessage(inv, forceFinal),
		Tools:                   e.deps.Config.ToolSpecsForRole(string(session.RoleAnalyst)),
		MaxTurns:                e.deps.Config.Doc.Safety.MaxTurnsPerSession,
		MaxConsecutiveMalformed: e.deps.Config.Doc.Safety.MaxConsecutiveMalformedToolCalls,
		Model:                   e.deps.AnalystModel,
		Dispatcher:              e.deps.Dispatcher,
		Logger:                  e.logger,
	})
}

func analystInitialMessage(inv *relstore.Investigation, forceFinal bool) []llm.Message {
	text := fmt.Sprintf("Investigation prompt: %s\ncycle: %d", inv.Prompt, inv.CycleCount)
	if forceFinal {
		text += "\nThis is the final cycle; produce your assessment now."
	}
	return []llm.Message{{Role: llm.RoleUser, Content: []llm.ContentBlock{{Type: "text", Text: text}}}}
}

// dispatchCycle persists and publishes a cycle's work orders, then
// transitions the investigation to PROCESSING. Each work order is
// persisted before it is published to the queue.
func (e *Engine) dispatchCycle(ctx context.Context, investigationID string, drafts []session.WorkOrderDraft) {
	var cycle int
	err := e.breakers.execute("relational", func() error {
		c, innerErr := e.deps.Rel.IncrementCycle(ctx, investigationID)
		cycle = c
		return innerErr
	})
	if err != nil {
		e.logger.Error("orchestrator: incrementing cycle", "investigation_id", investigationID, "error", err)
		return
	}

	if max := e.deps.Config.Doc.Safety.MaxWorkOrdersPerCycle; max > 0 && len(drafts) > max {
		e.logger.Warn("orchestrator: cycle exceeded max work orders, truncating", "investigation_id", investigationID, "requested", len(drafts), "max", max)
		drafts = drafts[:max]
	}

	ids := make([]string, 0, len(drafts))
	for _, d := range drafts {
		woID := uuid.NewString()
		wo := relstore.WorkOrder{
			ID:                 woID,
			InvestigationID:    investigationID,
			Objective:          d.Objective,
			Priority:           d.Priority,
			ReferencedEntities: d.ReferencedEntities,
			SourceGuidance:     d.SourceGuidance,
			Cycle:              cycle,
		}
		if err := e.breakers.execute("relational", func() error { return e.deps.Rel.CreateWorkOrder(ctx, wo) }); err != nil {
			e.logger.Error("orchestrator: persisting work order", "investigation_id", investigationID, "error", err)
			continue
		}

		msg := queue.Message{
			WorkOrderID:        woID,
			InvestigationID:    investigationID,
			Objective:          d.Objective,
			ReferencedEntities: d.ReferencedEntities,
			SourceGuidance:     d.SourceGuidance,
		}
		if err := e.breakers.execute("queue", func() error {
			_, pubErr := e.deps.Queue.Publish(ctx, workOrderPriority(d.Priority), msg)
			return pubErr
		}); err != nil {
			// Persisted but unpublished: the reclaimer cannot see a row that
			// never reached the stream. Left queued; a future operational
			// sweep (or investigation resume) re-publishes stuck queued
			// work orders. Logged loudly since it is otherwise silent.
			e.logger.Error("orchestrator: publishing work order", "work_order_id", woID, "error", err)
			continue
		}
		ids = append(ids, woID)
	}

	if err := e.transition(ctx, investigationID, relstore.StatusProcessing); err != nil {
		e.logger.Error("orchestrator: transitioning to processing", "investigation_id", investigationID, "error", err)
		return
	}
	e.logger.Info("orchestrator: cycle dispatched", "investigation_id", investigationID, "cycle", cycle, "work_orders", len(ids))
}

// workOrderPriority maps the Analyst's create_work_order priority (an int,
// 0 reserved / 1 normal / 2 high per config.Priority) onto a queue stream.
func workOrderPriority(p int) queue.Priority {
	switch p {
	case 2:
		return queue.PriorityHigh
	case 0:
		return queue.PriorityLow
	default:
		return queue.PriorityNormal
	}
}
