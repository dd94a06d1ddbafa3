package session

import (
	"context"
	"log/slog"

	"github.com/autosint/engine/pkg/llm"
)

// MaxConsecutiveMalformedDefault is used when Config.MaxConsecutiveMalformed
// is left at zero; callers normally set it from safety.max_consecutive_malformed_tool_calls.
const MaxConsecutiveMalformedDefault = 3

// Config parameterizes one Run call. Callers build it fresh for every
// session: Analyst sessions never carry conversation state across cycles,
// the graph is the memory.
type Config struct {
	Role        Role
	System      string
	Initial     []llm.Message
	Tools       []llm.ToolSpec
	MaxTurns    int
	MaxConsecutiveMalformed int
	Model       Client
	Dispatcher  ToolExecutor
	Logger      *slog.Logger
}

// Client is the narrow LLM capability the runtime depends on.
type Client = llm.Client

// Run executes the tool-use loop to one terminal Outcome.
//
//  1. Build request = system prompt + history + tool schemas.
//  2. Send to the LLM provider.
//  3. Response is either text-only or contains one or more tool calls.
//  4. For each tool call: resolve handler, execute, append tool_result.
//  5. If text-only: session complete.
//  6. Enforce max_turns; if reached, terminate MaxTurnsReached.
func Run(ctx context.Context, cfg Config) *Outcome {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	maxMalformed := cfg.MaxConsecutiveMalformed
	if maxMalformed <= 0 {
		maxMalformed = MaxConsecutiveMalformedDefault
	}

	history := append([]llm.Message(nil), cfg.Initial...)
	consecutiveMalformed := 0
	var workOrders []WorkOrderDraft
	var assessment *AssessmentDraft

	for turn := 1; turn <= cfg.MaxTurns; turn++ {
		resp, err := cfg.Model.Complete(ctx, llm.Request{
			System:   cfg.System,
			Messages: history,
			Tools:    cfg.Tools,
		})
		if err != nil {
			log.Error("session: llm completion failed", "role", cfg.Role, "turn", turn, "error", err)
			return &Outcome{Kind: OutcomeFailed, Err: err, Turns: turn, History: history}
		}

		toolCalls := resp.ToolCalls()
		if len(toolCalls) == 0 {
			// Text-only response: session complete.
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
			return &Outcome{
				Kind:               OutcomeCompleted,
				FinalText:          resp.Text(),
				Turns:              turn,
				History:            history,
				WorkOrdersCreated:  workOrders,
				AssessmentProduced: assessment,
			}
		}

		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})

		resultBlocks := make([]llm.ContentBlock, 0, len(toolCalls))
		for _, tc := range toolCalls {
			call := ToolCall{ID: tc.ToolUseID, Name: tc.ToolName, Arguments: tc.ToolInput}
			result := cfg.Dispatcher.Execute(ctx, cfg.Role, call)

			if result.Malformed {
				consecutiveMalformed++
			} else {
				consecutiveMalformed = 0
			}

			if cfg.Role == RoleAnalyst {
				if result.WorkOrder != nil {
					if assessment != nil {
						result = rejectBimodalConflict(result, "create_work_order called after produce_assessment already succeeded in this session")
					} else {
						workOrders = append(workOrders, *result.WorkOrder)
					}
				}
				if result.Assessment != nil {
					if len(workOrders) > 0 {
						result = rejectBimodalConflict(result, "produce_assessment called after create_work_order already succeeded in this session")
					} else if assessment != nil {
						result = rejectBimodalConflict(result, "produce_assessment called more than once in this session")
					} else {
						assessment = result.Assessment
					}
				}
			}

			resultBlocks = append(resultBlocks, llm.ContentBlock{
				Type:              "tool_result",
				ToolUseID:         tc.ToolUseID,
				ToolResultContent: result.Content,
				IsError:           result.IsError,
			})

			if consecutiveMalformed >= maxMalformed {
				history = append(history, llm.Message{Role: llm.RoleUser, Content: resultBlocks})
				log.Warn("session: malformed tool call limit reached", "role", cfg.Role, "turn", turn)
				return &Outcome{
					Kind:               OutcomeMalformedToolCallLimit,
					Turns:              turn,
					History:            history,
					WorkOrdersCreated:  workOrders,
					AssessmentProduced: assessment,
				}
			}
		}

		history = append(history, llm.Message{Role: llm.RoleUser, Content: resultBlocks})

		// Analyst bimodality: the first of create_work_order / produce_assessment
		// to succeed determines the outcome; further processing this turn still
		// happens (other tool calls in the same batch complete) but the session
		// ends once at least one of the two fired cleanly: a cycle's work
		// orders or its assessment is the ANALYST_RUNNING exit event.
		if cfg.Role == RoleAnalyst && (len(workOrders) > 0 || assessment != nil) {
			return &Outcome{
				Kind:               OutcomeCompleted,
				Turns:              turn,
				History:            history,
				WorkOrdersCreated:  workOrders,
				AssessmentProduced: assessment,
			}
		}
	}

	log.Info("session: max turns reached", "role", cfg.Role, "max_turns", cfg.MaxTurns)
	return &Outcome{
		Kind:               OutcomeMaxTurnsReached,
		Turns:              cfg.MaxTurns,
		History:            history,
		WorkOrdersCreated:  workOrders,
		AssessmentProduced: assessment,
	}
}

// rejectBimodalConflict turns a tool result that violates the "first of
// either wins" rule into an error tool result: if both appear, the second
// is rejected as an error tool result.
func rejectBimodalConflict(result ToolResult, reason string) ToolResult {
	result.WorkOrder = nil
	result.Assessment = nil
	result.IsError = true
	result.Content = reason
	return result
}
