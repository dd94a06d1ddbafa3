package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autosint/engine/pkg/llm"
)

func TestCountClaimsProducedSingleCreateClaim(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: "tool_use", ToolUseID: "t1", ToolName: "create_claim"},
		}},
		{Role: llm.RoleUser, Content: []llm.ContentBlock{
			{Type: "tool_result", ToolUseID: "t1", ToolResultContent: `{"id":"claim-1"}`},
		}},
	}
	assert.Equal(t, 1, countClaimsProduced(history))
}

func TestCountClaimsProducedBatchExtract(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: "tool_use", ToolUseID: "t1", ToolName: "batch_extract"},
		}},
		{Role: llm.RoleUser, Content: []llm.ContentBlock{
			{Type: "tool_result", ToolUseID: "t1", ToolResultContent: `{"claim_ids":["c1","c2","c3"]}`},
		}},
	}
	assert.Equal(t, 3, countClaimsProduced(history))
}

func TestCountClaimsProducedIgnoresErrorResults(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: "tool_use", ToolUseID: "t1", ToolName: "create_claim"},
		}},
		{Role: llm.RoleUser, Content: []llm.ContentBlock{
			{Type: "tool_result", ToolUseID: "t1", ToolResultContent: `{"error":"validation failed"}`, IsError: true},
		}},
	}
	assert.Equal(t, 0, countClaimsProduced(history))
}

func TestCountClaimsProducedIgnoresUnrelatedTools(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: "tool_use", ToolUseID: "t1", ToolName: "search_entities"},
		}},
		{Role: llm.RoleUser, Content: []llm.ContentBlock{
			{Type: "tool_result", ToolUseID: "t1", ToolResultContent: `{"id":"claim-1"}`},
		}},
	}
	assert.Equal(t, 0, countClaimsProduced(history))
}

func TestClaimsInResultUndecodable(t *testing.T) {
	assert.Equal(t, 0, claimsInResult("create_claim", "not json"))
}
