package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectBimodalConflictClearsDraftsAndMarksError(t *testing.T) {
	result := ToolResult{
		Content:    "ok",
		WorkOrder:  &WorkOrderDraft{},
		Assessment: &AssessmentDraft{},
	}
	rejected := rejectBimodalConflict(result, "produce_assessment called more than once in this session")

	assert.True(t, rejected.IsError)
	assert.Nil(t, rejected.WorkOrder)
	assert.Nil(t, rejected.Assessment)
	assert.Equal(t, "produce_assessment called more than once in this session", rejected.Content)
}
