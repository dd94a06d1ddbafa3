package assess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateContentAccepted(t *testing.T) {
	content := map[string]any{
		"summary": "The subject coordinated three shipments through the port.",
		"findings": []any{
			map[string]any{
				"statement":   "Subject met with broker X on three occasions.",
				"confidence":  0.8,
				"entity_refs": []any{"entity-1"},
				"claim_refs":  []any{"claim-1"},
			},
		},
		"gaps": []any{"no corroborating financial record found"},
	}
	err := ValidateContent(context.Background(), content)
	require.NoError(t, err)
}

func TestValidateContentRejectsMissingRequiredField(t *testing.T) {
	content := map[string]any{
		"summary":  "missing findings and gaps",
		"findings": []any{},
	}
	err := ValidateContent(context.Background(), content)
	assert.Error(t, err)
}

func TestValidateContentRejectsOutOfRangeConfidence(t *testing.T) {
	content := map[string]any{
		"summary": "bad confidence",
		"findings": []any{
			map[string]any{
				"statement":   "x",
				"confidence":  1.5,
				"entity_refs": []any{},
				"claim_refs":  []any{},
			},
		},
		"gaps": []any{},
	}
	err := ValidateContent(context.Background(), content)
	assert.Error(t, err)
}

func TestConfidenceAveragesFindings(t *testing.T) {
	content := map[string]any{
		"findings": []any{
			map[string]any{"confidence": 0.4},
			map[string]any{"confidence": 0.8},
		},
	}
	assert.InDelta(t, 0.6, Confidence(content), 1e-9)
}

func TestConfidenceNoFindings(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(map[string]any{}))
}
