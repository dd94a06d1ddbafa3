package tools

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateResultListWithinLimit(t *testing.T) {
	items := []any{"a", "b"}
	kept, omitted := truncateResultList(items, 5)
	assert.Equal(t, items, kept)
	assert.Equal(t, 0, omitted)
}

func TestTruncateResultListOverLimit(t *testing.T) {
	items := []any{"a", "b", "c", "d"}
	kept, omitted := truncateResultList(items, 2)
	assert.Equal(t, []any{"a", "b"}, kept)
	assert.Equal(t, 2, omitted)
}

func TestTruncateResultListNoLimit(t *testing.T) {
	items := []any{"a", "b", "c"}
	kept, omitted := truncateResultList(items, 0)
	assert.Equal(t, items, kept)
	assert.Equal(t, 0, omitted)
}

func TestWithOmittedNoneDropped(t *testing.T) {
	out := withOmitted([]any{"a"}, 0)
	assert.Equal(t, []any{"a"}, out["results"])
	_, hasOmitted := out["omitted"]
	assert.False(t, hasOmitted)
}

func TestWithOmittedSomeDropped(t *testing.T) {
	out := withOmitted([]any{"a"}, 3)
	assert.Equal(t, 3, out["omitted"])
}

func TestTruncateEntityPropertiesUnderLimit(t *testing.T) {
	entity := map[string]any{"id": "e1", "canonical_name": "Test"}
	out := truncateEntityProperties(entity, 1_000_000)
	assert.Equal(t, entity, out)
}

func TestTruncateEntityPropertiesOverLimitKeepsCoreFields(t *testing.T) {
	entity := map[string]any{
		"id":             "e1",
		"canonical_name": "Test Entity",
		"kind":           "person",
		"summary":        "a summary",
		"extra_field":    "a very long value that pushes this payload over the byte cap for this test case",
	}
	out := truncateEntityProperties(entity, 10)
	assert.Equal(t, "e1", out["id"])
	assert.Equal(t, "Test Entity", out["canonical_name"])
	assert.Equal(t, "person", out["kind"])
	assert.Equal(t, "a summary", out["summary"])
	assert.Equal(t, true, out["properties_truncated"])
	_, hasExtra := out["extra_field"]
	assert.False(t, hasExtra)
}

func TestTruncateBytesUnderLimitReturnsInput(t *testing.T) {
	raw := []byte(`{"a":1}`)
	assert.Equal(t, string(raw), truncateBytes(raw, 1000))
}

func TestTruncateBytesOverLimitProducesValidJSON(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"content": strings.Repeat("x", 100)})
	assert.NoError(t, err)
	out := truncateBytes(raw, 20)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, true, decoded["truncated"])
	if omitted, ok := decoded["omitted_bytes"].(float64); ok {
		assert.Greater(t, omitted, float64(0))
	} else {
		t.Fatal("expected omitted_bytes in truncated output")
	}
}

func TestTruncateBytesDoesNotSplitMultiByteRune(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"content": strings.Repeat("é", 30)})
	assert.NoError(t, err)
	// Pick a cap that lands mid-rune in the raw bytes to exercise the
	// rune-boundary walk-back.
	out := truncateBytes(raw, len(raw)/2+1)

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal([]byte(out), &decoded))
	preview, ok := decoded["preview"].(string)
	assert.True(t, ok)
	assert.True(t, func() bool {
		for _, r := range preview {
			if r == '�' {
				return false
			}
		}
		return true
	}())
}
