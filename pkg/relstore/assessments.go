package relstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func encodeVector(v []float32) string {
	if len(v) == 0 {
		return ""
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func decodeVector(s string) []float32 {
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil
	}
	fields := strings.Split(s, ",")
	out := make([]float32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			continue
		}
		out = append(out, float32(v))
	}
	return out
}

// CreateAssessment writes the Analyst's terminal deliverable for an
// investigation. A nil embedding is stored as SQL NULL, and the HNSW
// index excludes such rows from vector search; no backfill in this
// package fills them in.
func (s *Store) CreateAssessment(ctx context.Context, a Assessment) error {
	content, err := json.Marshal(a.Content)
	if err != nil {
		return fmt.Errorf("relstore: encoding assessment content: %w", err)
	}
	entityRefs, err := json.Marshal(a.EntityRefs)
	if err != nil {
		return fmt.Errorf("relstore: encoding entity_refs: %w", err)
	}
	claimRefs, err := json.Marshal(a.ClaimRefs)
	if err != nil {
		return fmt.Errorf("relstore: encoding claim_refs: %w", err)
	}

	var vec any
	if len(a.Embedding) > 0 {
		vec = encodeVector(a.Embedding)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO assessments (id, investigation_id, content, confidence, entity_refs, claim_refs, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.InvestigationID, content, a.Confidence, entityRefs, claimRefs, vec)
	if err != nil {
		return fmt.Errorf("relstore: creating assessment %s: %w", a.ID, err)
	}
	return nil
}

// GetAssessment fetches one assessment by id.
func (s *Store) GetAssessment(ctx context.Context, id string) (*Assessment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, investigation_id, content, confidence, entity_refs, claim_refs, embedding::text, created_at
		FROM assessments WHERE id = $1`, id)

	var a Assessment
	var content, entityRefs, claimRefs []byte
	var embeddingText *string
	if err := row.Scan(&a.ID, &a.InvestigationID, &content, &a.Confidence, &entityRefs, &claimRefs, &embeddingText, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("relstore: fetching assessment %s: %w", id, err)
	}
	if err := json.Unmarshal(content, &a.Content); err != nil {
		return nil, fmt.Errorf("relstore: decoding assessment content: %w", err)
	}
	_ = json.Unmarshal(entityRefs, &a.EntityRefs)
	_ = json.Unmarshal(claimRefs, &a.ClaimRefs)
	if embeddingText != nil {
		a.Embedding = decodeVector(*embeddingText)
	}
	return &a, nil
}

// SearchAssessmentsSemantic runs cosine-distance nearest-neighbor search
// over the HNSW index.
func (s *Store) SearchAssessmentsSemantic(ctx context.Context, vector []float32, limit int) ([]Assessment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, investigation_id, content, confidence, entity_refs, claim_refs, embedding::text, created_at
		FROM assessments
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, encodeVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("relstore: semantic assessment search: %w", err)
	}
	defer rows.Close()

	var out []Assessment
	for rows.Next() {
		var a Assessment
		var content, entityRefs, claimRefs []byte
		var embeddingText *string
		if err := rows.Scan(&a.ID, &a.InvestigationID, &content, &a.Confidence, &entityRefs, &claimRefs, &embeddingText, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("relstore: scanning assessment row: %w", err)
		}
		_ = json.Unmarshal(content, &a.Content)
		_ = json.Unmarshal(entityRefs, &a.EntityRefs)
		_ = json.Unmarshal(claimRefs, &a.ClaimRefs)
		if embeddingText != nil {
			a.Embedding = decodeVector(*embeddingText)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAssessmentsForInvestigation supports get_investigation_history.
func (s *Store) ListAssessmentsForInvestigation(ctx context.Context, investigationID string) ([]Assessment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, investigation_id, content, confidence, entity_refs, claim_refs, embedding::text, created_at
		FROM assessments WHERE investigation_id = $1 ORDER BY created_at`, investigationID)
	if err != nil {
		return nil, fmt.Errorf("relstore: listing assessments for investigation %s: %w", investigationID, err)
	}
	defer rows.Close()

	var out []Assessment
	for rows.Next() {
		var a Assessment
		var content, entityRefs, claimRefs []byte
		var embeddingText *string
		if err := rows.Scan(&a.ID, &a.InvestigationID, &content, &a.Confidence, &entityRefs, &claimRefs, &embeddingText, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("relstore: scanning assessment row: %w", err)
		}
		_ = json.Unmarshal(content, &a.Content)
		_ = json.Unmarshal(entityRefs, &a.EntityRefs)
		_ = json.Unmarshal(claimRefs, &a.ClaimRefs)
		if embeddingText != nil {
			a.Embedding = decodeVector(*embeddingText)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
