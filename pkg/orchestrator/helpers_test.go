package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectRefsDedupesAcrossFindings(t *testing.T) {
	content := map[string]any{
		"findings": []any{
			map[string]any{"entity_refs": []any{"e1", "e2"}},
			map[string]any{"entity_refs": []any{"e2", "e3"}},
		},
	}
	refs := collectRefs(content, "entity_refs")
	assert.Equal(t, []string{"e1", "e2", "e3"}, refs)
}

func TestCollectRefsIgnoresMalformedFindings(t *testing.T) {
	content := map[string]any{
		"findings": []any{
			"not a map",
			map[string]any{"claim_refs": []any{"c1", "", 7, "c1"}},
		},
	}
	refs := collectRefs(content, "claim_refs")
	assert.Equal(t, []string{"c1"}, refs)
}

func TestCollectRefsNoFindings(t *testing.T) {
	assert.Nil(t, collectRefs(map[string]any{}, "entity_refs"))
}
