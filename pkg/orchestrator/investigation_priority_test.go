package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autosint/engine/pkg/queue"
)

func TestWorkOrderPriorityMapping(t *testing.T) {
	assert.Equal(t, queue.PriorityHigh, workOrderPriority(2))
	assert.Equal(t, queue.PriorityLow, workOrderPriority(0))
	assert.Equal(t, queue.PriorityNormal, workOrderPriority(1))
	assert.Equal(t, queue.PriorityNormal, workOrderPriority(99), "unrecognized priority falls back to normal")
}
