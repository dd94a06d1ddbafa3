package graph

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/agext/levenshtein"
)

// DedupConfig parameterizes the fuzzy and embedding stages of the cascade.
type DedupConfig struct {
	FuzzyThreshold     float64 // similarity in [0,1]; agext/levenshtein.Match scale
	EmbeddingThreshold float64 // cosine similarity in [0,1]
	ShortlistSize      int
}

var levenshteinParams = levenshtein.NewParams()

// Dedup runs the four-stage cascade against one candidate name and
// optional embedding, short-circuiting as soon as a stage produces a
// verdict. LLM arbitration (stage 4) is the caller's responsibility: Dedup
// returns MatchNone when stages 1-3 are inconclusive, leaving the decision
// for the caller to route to an LLM arbitration call with the shortlist.
func (s *Store) Dedup(ctx context.Context, name string, embedding []float32, cfg DedupConfig) (MatchResult, []Entity, error) {
	exact, err := s.SearchEntitiesExact(ctx, name)
	if err != nil {
		return MatchResult{}, nil, fmt.Errorf("graph: dedup exact stage: %w", err)
	}
	if len(exact) > 0 {
		return MatchResult{Kind: MatchExact, EntityID: exact[0].ID, Confidence: 1.0}, exact, nil
	}

	shortlistSize := cfg.ShortlistSize
	if shortlistSize <= 0 {
		shortlistSize = 20
	}
	candidates, err := s.SearchEntitiesFullText(ctx, name, shortlistSize)
	if err != nil {
		return MatchResult{}, nil, fmt.Errorf("graph: dedup fuzzy-stage candidate fetch: %w", err)
	}

	fuzzyThreshold := cfg.FuzzyThreshold
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = 0.85
	}
	best, bestScore := fuzzyBestMatch(name, candidates, fuzzyThreshold)
	if best != nil {
		return MatchResult{Kind: MatchProbable, EntityID: best.ID, Confidence: bestScore}, candidates, nil
	}

	if len(embedding) == 0 || len(candidates) == 0 {
		return MatchResult{Kind: MatchNone}, candidates, nil
	}

	embeddingThreshold := cfg.EmbeddingThreshold
	if embeddingThreshold <= 0 {
		embeddingThreshold = 0.9
	}
	semantic, err := s.SearchEntitiesSemantic(ctx, embedding, shortlistSize)
	if err != nil {
		return MatchResult{}, candidates, fmt.Errorf("graph: dedup embedding stage: %w", err)
	}
	for _, e := range semantic {
		score := cosineSimilarity(embedding, e.Embedding)
		if score >= embeddingThreshold {
			return MatchResult{Kind: MatchProbable, EntityID: e.ID, Confidence: score}, semantic, nil
		}
	}

	return MatchResult{Kind: MatchNone}, candidates, nil
}

// fuzzyBestMatch finds the candidate whose canonical_name or any alias is
// closest to name by normalized edit distance, returning it only when the
// similarity clears threshold.
func fuzzyBestMatch(name string, candidates []Entity, threshold float64) (*Entity, float64) {
	var best *Entity
	var bestScore float64
	normName := strings.ToLower(strings.TrimSpace(name))
	for i := range candidates {
		c := &candidates[i]
		score := levenshtein.Match(normName, strings.ToLower(c.CanonicalName), levenshteinParams)
		for _, alias := range c.Aliases {
			if s := levenshtein.Match(normName, strings.ToLower(alias), levenshteinParams); s > score {
				score = s
			}
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best == nil || bestScore < threshold {
		return nil, 0
	}
	return best, bestScore
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
