// Package session implements the Agentic Session Runtime: one LLM
// tool-use loop run to completion for a single Analyst or Processor role.
// Both roles share this runtime; they differ in system prompt, tool set,
// and termination semantics, which the caller supplies.
package session

import (
	"github.com/autosint/engine/pkg/llm"
)

// Role distinguishes the two session kinds sharing this runtime.
type Role string

const (
	RoleAnalyst   Role = "analyst"
	RoleProcessor Role = "processor"
)

// OutcomeKind discriminates the terminal states of a session run.
type OutcomeKind string

const (
	OutcomeCompleted               OutcomeKind = "completed"
	OutcomeMaxTurnsReached         OutcomeKind = "max_turns_reached"
	OutcomeMalformedToolCallLimit  OutcomeKind = "malformed_tool_call_limit"
	OutcomeFailed                  OutcomeKind = "failed"
)

// Outcome is the terminal result of one session loop.
type Outcome struct {
	Kind OutcomeKind

	// FinalText is the session's closing text response, populated only when
	// the session ends on a text-only response (OutcomeCompleted).
	FinalText string

	// Err is populated for OutcomeFailed.
	Err error

	// Turns is the number of request/response round trips executed.
	Turns int

	// History is the full message transcript at termination, so a Processor
	// MaxTurnsReached outcome can still report its durable partial writes;
	// it is treated as Completed for Processors since their writes are
	// durable regardless of how the session ended.
	History []llm.Message

	// Analyst-only bimodal result.
	WorkOrdersCreated []WorkOrderDraft
	AssessmentProduced *AssessmentDraft
}

// WorkOrderDraft is the Analyst's create_work_order tool call argument,
// already validated against its JSON Schema by the dispatcher.
type WorkOrderDraft struct {
	Objective          string
	Priority           int
	ReferencedEntities []string
	SourceGuidance     map[string]any
}

// AssessmentDraft is the Analyst's produce_assessment tool call argument.
type AssessmentDraft struct {
	Content map[string]any
}
