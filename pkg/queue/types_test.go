package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamKey(t *testing.T) {
	assert.Equal(t, "workorders:high", PriorityHigh.streamKey("workorders"))
	assert.Equal(t, "workorders:normal", PriorityNormal.streamKey("workorders"))
	assert.Equal(t, "workorders:low", PriorityLow.streamKey("workorders"))
}

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	msg := Message{
		WorkOrderID:        "wo-1",
		InvestigationID:    "inv-1",
		Objective:          "find the shipping broker",
		ReferencedEntities: []string{"entity-1", "entity-2"},
		SourceGuidance:     map[string]any{"tone": "cautious"},
	}
	raw, err := msg.encode()
	require.NoError(t, err)

	decoded, err := decodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestDecodeMessageInvalidJSON(t *testing.T) {
	_, err := decodeMessage("not json")
	assert.Error(t, err)
}

func TestPriorityOrderIsHighNormalLow(t *testing.T) {
	assert.Equal(t, []Priority{PriorityHigh, PriorityNormal, PriorityLow}, priorityOrder)
}
