package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/autosint/engine/pkg/assess"
	"github.com/autosint/engine/pkg/relstore"
	"github.com/autosint/engine/pkg/session"
)

// getInvestigation fetches an investigation through the relational breaker.
func (e *Engine) getInvestigation(ctx context.Context, id string) (*relstore.Investigation, error) {
	var inv *relstore.Investigation
	err := e.breakers.execute("relational", func() error {
		v, innerErr := e.deps.Rel.GetInvestigation(ctx, id)
		inv = v
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// transition moves an investigation to a new non-terminal status.
func (e *Engine) transition(ctx context.Context, id string, status relstore.InvestigationStatus) error {
	return e.breakers.execute("relational", func() error {
		return e.deps.Rel.TransitionStatus(ctx, id, status)
	})
}

// suspend moves an investigation to SUSPENDED with reason, recording the
// current cycle as its resume point. Suspend is best-effort: if the
// relational store is itself the tripped dependency, the write is logged
// and dropped rather than retried against the very store that is down.
func (e *Engine) suspend(ctx context.Context, id, reason string) {
	resumeFrom := fmt.Sprintf("cycle:%d", e.cycleHint(ctx, id))
	if err := e.deps.Rel.Suspend(ctx, id, reason, resumeFrom); err != nil {
		e.logger.Error("orchestrator: suspending investigation", "investigation_id", id, "reason", reason, "error", err)
	} else {
		e.logger.Warn("orchestrator: investigation suspended", "investigation_id", id, "reason", reason)
	}
}

// cycleHint best-effort reads an investigation's current cycle count for
// the resume_from marker, tolerating a failed read (the dependency that
// triggered suspend may be the relational store itself).
func (e *Engine) cycleHint(ctx context.Context, id string) int {
	inv, err := e.deps.Rel.GetInvestigation(ctx, id)
	if err != nil {
		return -1
	}
	return inv.CycleCount
}

// fail marks an investigation FAILED.
func (e *Engine) fail(ctx context.Context, id, reason string) {
	if err := e.breakers.execute("relational", func() error {
		return e.deps.Rel.Complete(ctx, id, relstore.StatusFailed)
	}); err != nil {
		e.logger.Error("orchestrator: failing investigation", "investigation_id", id, "reason", reason, "error", err)
		return
	}
	e.logger.Warn("orchestrator: investigation failed", "investigation_id", id, "reason", reason)
	e.clearStreaks(id)
}

// completeWithAssessment validates, persists, and finalizes the Analyst's
// produce_assessment draft, then marks the investigation COMPLETED.
// Embedding is left nil and stays NULL: the embeddings backfill scan
// covers entities only, so the assessment is not found by vector search.
func (e *Engine) completeWithAssessment(ctx context.Context, id string, draft *session.AssessmentDraft) {
	if err := assess.ValidateContent(ctx, draft.Content); err != nil {
		e.fail(ctx, id, "produced assessment failed content validation: "+err.Error())
		return
	}

	a := relstore.Assessment{
		ID:              uuid.NewString(),
		InvestigationID: id,
		Content:         draft.Content,
		Confidence:      assess.Confidence(draft.Content),
		EntityRefs:      collectRefs(draft.Content, "entity_refs"),
		ClaimRefs:       collectRefs(draft.Content, "claim_refs"),
	}

	if err := e.breakers.execute("relational", func() error { return e.deps.Rel.CreateAssessment(ctx, a) }); err != nil {
		e.logger.Error("orchestrator: persisting assessment", "investigation_id", id, "error", err)
		return
	}
	if err := e.breakers.execute("relational", func() error {
		return e.deps.Rel.Complete(ctx, id, relstore.StatusCompleted)
	}); err != nil {
		e.logger.Error("orchestrator: completing investigation", "investigation_id", id, "error", err)
		return
	}
	e.logger.Info("orchestrator: investigation completed", "investigation_id", id, "assessment_id", a.ID)
	e.clearStreaks(id)
}

// collectRefs flattens a ref field (entity_refs or claim_refs) across every
// finding in an assessment's content into a deduplicated slice.
func collectRefs(content map[string]any, field string) []string {
	findings, _ := content["findings"].([]any)
	seen := map[string]bool{}
	var out []string
	for _, f := range findings {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}
		refs, _ := m[field].([]any)
		for _, r := range refs {
			s, ok := r.(string)
			if !ok || s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Streak bookkeeping backs driveAnalyst's force-final checks: repeated
// empty Analyst cycles (emptySessionRetryLimit), or cycles whose work
// orders all failed (ConsecutiveAllFailLimit in config.Doc.Safety), force a
// final-assessment attempt rather than looping indefinitely against an
// unproductive investigation.

func (e *Engine) emptyStreakAt(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emptyAnalystStreak[id]
}

func (e *Engine) failStreakAt(id string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allFailCycleStreak[id]
}

func (e *Engine) bumpEmptyStreak(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emptyAnalystStreak[id]++
}

func (e *Engine) resetEmptyStreak(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emptyAnalystStreak[id] = 0
}

func (e *Engine) bumpFailStreak(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.allFailCycleStreak[id]++
}

func (e *Engine) resetFailStreak(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.allFailCycleStreak[id] = 0
}

func (e *Engine) resetStreaks(id string) {
	e.resetEmptyStreak(id)
	e.resetFailStreak(id)
}

func (e *Engine) clearStreaks(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.emptyAnalystStreak, id)
	delete(e.allFailCycleStreak, id)
}
