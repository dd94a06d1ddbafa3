package session

import (
	"context"
	"encoding/json"
)

// ToolCall is one tool_use block resolved from a Response.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult is what a dispatcher returns for one tool call. Content is the
// text serialized back into the conversation as a tool_result block.
// Malformed reports whether the call failed schema validation (counted
// against the consecutive-malformed budget); it is distinct from IsError,
// which covers handler-level failures that still count as a well-formed
// call.
type ToolResult struct {
	Content   string
	IsError   bool
	Malformed bool

	// WorkOrder/Assessment are populated by the dispatcher when the tool was
	// create_work_order / produce_assessment and validation succeeded, so
	// the runtime can enforce Analyst bimodality without string-matching
	// handler internals.
	WorkOrder  *WorkOrderDraft
	Assessment *AssessmentDraft
}

// ToolExecutor is the capability the session runtime depends on to resolve
// tool calls. pkg/tools.Dispatcher implements this.
type ToolExecutor interface {
	Execute(ctx context.Context, role Role, call ToolCall) ToolResult
}

// Known tool names with session-level significance for the Analyst role.
const (
	ToolCreateWorkOrder   = "create_work_order"
	ToolProduceAssessment = "produce_assessment"
)
