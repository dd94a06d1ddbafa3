package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/autosint/engine/pkg/apperr"
	"github.com/autosint/engine/pkg/llm"
	"github.com/autosint/engine/pkg/queue"
	"github.com/autosint/engine/pkg/relstore"
	"github.com/autosint/engine/pkg/session"
)

// ProcessorPool runs Config.Doc.Concurrency.ProcessorPoolSize workers, each
// dequeuing from the three priority streams and driving one Processor
// session per work order: a fixed set of goroutines, each with its own
// dequeue/claim/run/ack loop, stopped together via a shared context.
type ProcessorPool struct {
	e  *Engine
	wg sync.WaitGroup
}

func newProcessorPool(e *Engine) *ProcessorPool {
	return &ProcessorPool{e: e}
}

func (p *ProcessorPool) start(ctx context.Context) {
	size := p.e.deps.Config.Doc.Concurrency.ProcessorPoolSize
	if size <= 0 {
		size = 1
	}
	for i := 0; i < size; i++ {
		consumerName := fmt.Sprintf("%s-worker-%d", p.e.instanceID, i)
		p.wg.Add(1)
		go func(name string) {
			defer p.wg.Done()
			p.run(ctx, name)
		}(consumerName)
	}
}

func (p *ProcessorPool) stop() {
	p.wg.Wait()
}

// run is one worker's lifetime: heartbeat in the background, dequeue,
// process, ack, repeat until ctx is cancelled.
func (p *ProcessorPool) run(ctx context.Context, consumerName string) {
	ttl := p.e.deps.Config.Doc.Safety.HeartbeatTTL
	go p.e.deps.Queue.RunHeartbeat(ctx, consumerName, ttl, ttl/3)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		delivery, err := p.e.deps.Queue.Dequeue(ctx, consumerName, 5*time.Second)
		if err != nil {
			if err == queue.ErrNoWork || ctx.Err() != nil {
				continue
			}
			p.e.breakers.record("queue", apperr.New(apperr.KindHardDependency, "queue", err))
			p.e.logger.Error("orchestrator: dequeue failed", "consumer", consumerName, "error", err)
			time.Sleep(time.Second)
			continue
		}

		p.processDelivery(ctx, consumerName, delivery)
	}
}

// processDelivery claims, runs, and finalizes one work order, then checks
// whether its cycle is now fully terminal.
func (p *ProcessorPool) processDelivery(ctx context.Context, consumerName string, d *queue.Delivery) {
	e := p.e
	if err := e.breakers.execute("relational", func() error {
		return e.deps.Rel.ClaimWorkOrder(ctx, d.Message.WorkOrderID, consumerName)
	}); err != nil {
		e.logger.Error("orchestrator: claiming work order", "work_order_id", d.Message.WorkOrderID, "error", err)
		return
	}

	outcome := p.runProcessorSession(ctx, d.Message)
	e.breakers.recordFromSessionErr(outcome.Err)

	hardFailure := outcome.Kind == session.OutcomeFailed && apperr.IsHardDependency(outcome.Err)
	if hardFailure {
		// The queue message is left unacknowledged; the reclaimer redelivers
		// it once this worker's heartbeat lapses, or the investigation gets
		// suspended by the next driveAnalyst call and the order is
		// abandoned with the rest of its cycle.
		e.logger.Error("orchestrator: processor session failed against a hard dependency", "work_order_id", d.Message.WorkOrderID, "error", outcome.Err)
		return
	}

	wo, err := e.deps.Rel.GetWorkOrder(ctx, d.Message.WorkOrderID)
	if err != nil {
		e.logger.Error("orchestrator: refetching work order", "work_order_id", d.Message.WorkOrderID, "error", err)
		return
	}

	if outcome.Kind == session.OutcomeFailed {
		p.failOrRequeue(ctx, wo)
	} else {
		claims := countClaimsProduced(outcome.History)
		if err := e.breakers.execute("relational", func() error {
			return e.deps.Rel.CompleteWorkOrder(ctx, wo.ID, claims)
		}); err != nil {
			e.logger.Error("orchestrator: completing work order", "work_order_id", wo.ID, "error", err)
			return
		}
	}

	if err := e.deps.Queue.Ack(ctx, d); err != nil {
		e.logger.Error("orchestrator: acking delivery", "work_order_id", wo.ID, "error", err)
	}

	p.maybeAdvanceCycle(ctx, wo.InvestigationID, wo.Cycle)
}

// failOrRequeue applies the one-retry rule: a work order's first failure
// is requeued, its second is permanent.
func (p *ProcessorPool) failOrRequeue(ctx context.Context, wo *relstore.WorkOrder) {
	e := p.e
	retryCount, err := e.deps.Rel.FailWorkOrder(ctx, wo.ID)
	if err != nil {
		e.logger.Error("orchestrator: recording work order failure", "work_order_id", wo.ID, "error", err)
		return
	}
	if retryCount <= 1 {
		if err := e.deps.Rel.RequeueWorkOrder(ctx, wo.ID); err != nil {
			e.logger.Error("orchestrator: requeuing work order", "work_order_id", wo.ID, "error", err)
			return
		}
		if _, err := e.deps.Queue.Publish(ctx, workOrderPriority(wo.Priority), queue.Message{
			WorkOrderID:        wo.ID,
			InvestigationID:    wo.InvestigationID,
			Objective:          wo.Objective,
			ReferencedEntities: wo.ReferencedEntities,
			SourceGuidance:     wo.SourceGuidance,
		}); err != nil {
			e.logger.Error("orchestrator: republishing work order", "work_order_id", wo.ID, "error", err)
		}
	}
}

// maybeAdvanceCycle checks whether every work order in investigationID's
// cycle has reached a terminal state, and if so resumes the Analyst,
// moving PROCESSING back to ANALYST_RUNNING.
func (p *ProcessorPool) maybeAdvanceCycle(ctx context.Context, investigationID string, cycle int) {
	e := p.e
	orders, err := e.deps.Rel.ListWorkOrdersForCycle(ctx, investigationID, cycle)
	if err != nil {
		e.logger.Error("orchestrator: listing work orders for cycle", "investigation_id", investigationID, "cycle", cycle, "error", err)
		return
	}

	allFailed := len(orders) > 0
	for _, wo := range orders {
		if wo.Status != relstore.WorkOrderCompleted && wo.Status != relstore.WorkOrderFailed {
			return // cycle still in flight
		}
		if wo.Status != relstore.WorkOrderFailed {
			allFailed = false
		}
	}

	if allFailed {
		e.bumpFailStreak(investigationID)
	} else {
		e.resetFailStreak(investigationID)
	}

	e.driveAnalyst(ctx, investigationID)
}

// runProcessorSession builds the Processor's system prompt and initial
// message for msg and runs one session to completion.
func (p *ProcessorPool) runProcessorSession(ctx context.Context, msg queue.Message) *session.Outcome {
	e := p.e
	system, _ := e.deps.Config.Prompt("processor")
	return session.Run(withInvestigation(ctx, msg.InvestigationID), session.Config{
		Role:                    session.RoleProcessor,
		System:                  system,
		Initial:                 processorInitialMessage(msg),
		Tools:                   e.deps.Config.ToolSpecsForRole(string(session.RoleProcessor)),
		MaxTurns:                e.deps.Config.Doc.Safety.MaxTurnsPerSession,
		MaxConsecutiveMalformed: e.deps.Config.Doc.Safety.MaxConsecutiveMalformedToolCalls,
		Model:                   e.deps.ProcessorModel,
		Dispatcher:              e.deps.Dispatcher,
		Logger:                  e.logger,
	})
}

func processorInitialMessage(msg queue.Message) []llm.Message {
	guidance, _ := json.Marshal(msg.SourceGuidance)
	text := fmt.Sprintf("Work order objective: %s\nreferenced entities: %v\nsource guidance: %s",
		msg.Objective, msg.ReferencedEntities, string(guidance))
	return []llm.Message{{Role: llm.RoleUser, Content: []llm.ContentBlock{{Type: "text", Text: text}}}}
}

// countClaimsProduced counts claims durably created by a Processor session
// by pairing each create_claim/batch_extract tool_use block with its
// tool_result and decoding the handler's id/claim_ids payload. Used for
// WorkOrder.ClaimsProducedCount; approximate for sessions whose result
// JSON was truncated by the dispatcher's byte cap, in which case the
// undecodable tail is simply not counted.
func countClaimsProduced(history []llm.Message) int {
	pending := map[string]string{} // tool_use_id -> tool name
	var total int
	for _, m := range history {
		for _, b := range m.Content {
			switch b.Type {
			case "tool_use":
				if b.ToolName == "create_claim" || b.ToolName == "batch_extract" {
					pending[b.ToolUseID] = b.ToolName
				}
			case "tool_result":
				name, ok := pending[b.ToolUseID]
				if !ok || b.IsError {
					continue
				}
				total += claimsInResult(name, b.ToolResultContent)
			}
		}
	}
	return total
}

func claimsInResult(toolName, content string) int {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(content), &decoded); err != nil {
		return 0
	}
	switch toolName {
	case "create_claim":
		if _, ok := decoded["id"]; ok {
			return 1
		}
		return 0
	case "batch_extract":
		ids, _ := decoded["claim_ids"].([]any)
		return len(ids)
	default:
		return 0
	}
}
