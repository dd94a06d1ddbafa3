package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyBestMatchExactCase(t *testing.T) {
	candidates := []Entity{
		{ID: "e1", CanonicalName: "Vladimir Putin"},
		{ID: "e2", CanonicalName: "Dmitry Medvedev"},
	}
	best, score := fuzzyBestMatch("vladimir putin", candidates, 0.85)
	assert.NotNil(t, best)
	assert.Equal(t, "e1", best.ID)
	assert.Equal(t, 1.0, score)
}

func TestFuzzyBestMatchBelowThreshold(t *testing.T) {
	candidates := []Entity{
		{ID: "e1", CanonicalName: "Completely Different Name"},
	}
	best, score := fuzzyBestMatch("Vladimir Putin", candidates, 0.85)
	assert.Nil(t, best)
	assert.Equal(t, float64(0), score)
}

func TestFuzzyBestMatchUsesAliases(t *testing.T) {
	candidates := []Entity{
		{ID: "e1", CanonicalName: "Zelenskyy", Aliases: []string{"Volodymyr Zelensky"}},
	}
	best, score := fuzzyBestMatch("Volodymyr Zelensky", candidates, 0.85)
	assert.NotNil(t, best)
	assert.Equal(t, "e1", best.ID)
	assert.Equal(t, 1.0, score)
}

func TestFuzzyBestMatchEmptyCandidates(t *testing.T) {
	best, score := fuzzyBestMatch("anyone", nil, 0.85)
	assert.Nil(t, best)
	assert.Equal(t, float64(0), score)
}

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, cosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarityMismatchedLengths(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 2}, []float32{1}))
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
