package analyst

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autosint/engine/pkg/graph"
)

func TestClaimToMapNoPreviewReturnsFullContent(t *testing.T) {
	c := graph.Claim{ID: "c1", Content: "0123456789"}
	out := claimToMap(c, 0)
	assert.Equal(t, "0123456789", out["content"])
}

func TestClaimToMapPreviewTruncatesContent(t *testing.T) {
	c := graph.Claim{ID: "c1", Content: "0123456789"}
	out := claimToMap(c, 5)
	assert.Equal(t, "01234…", out["content"])
}

func TestPreviewStringUnderLimit(t *testing.T) {
	assert.Equal(t, "short", previewString("short", 100))
}
