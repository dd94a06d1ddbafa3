// Package llm wraps LLM provider access for the Agentic Session Runtime.
// The only implementation shipped here targets the Anthropic Messages API
// (github.com/anthropics/anthropic-sdk-go), matching the provider used by
// two other repositories in this codebase's lineage. Analyst and Processor
// sessions talk to the provider exclusively through the narrow Client
// interface so the runtime never depends on SDK types directly.
package llm

import (
	"context"
	"encoding/json"
)

// Role is a conversation role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentBlock is one block of a message: text, a tool_use request from the
// model, or a tool_result reply fed back to it. Exactly one of the typed
// fields is populated, discriminated by Type.
type ContentBlock struct {
	Type string `json:"type"` // "text" | "tool_use" | "tool_result"

	Text string `json:"text,omitempty"`

	// tool_use fields (model -> us)
	ToolUseID string          `json:"tool_use_id,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`

	// tool_result fields (us -> model)
	ToolResultContent string `json:"tool_result_content,omitempty"`
	IsError           bool   `json:"is_error,omitempty"`
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// ToolSpec is the LLM-facing shape of a tool: name, description, and JSON
// Schema parameters, translated 1:1 from a config.ToolSchemaDoc.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is one call to the provider.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
	Model     string
}

// StopReason mirrors the provider's termination signal for one turn.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// Response is the provider's reply for one turn.
type Response struct {
	StopReason StopReason
	Content    []ContentBlock
	InputTokens  int
	OutputTokens int
}

// ToolCalls extracts the tool_use blocks from a Response, in order.
func (r *Response) ToolCalls() []ContentBlock {
	var out []ContentBlock
	for _, c := range r.Content {
		if c.Type == "tool_use" {
			out = append(out, c)
		}
	}
	return out
}

// Text concatenates the text blocks of a Response.
func (r *Response) Text() string {
	var out string
	for _, c := range r.Content {
		if c.Type == "text" {
			out += c.Text
		}
	}
	return out
}

// Client is the narrow capability the session runtime depends on.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
