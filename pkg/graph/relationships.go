package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

func relationshipToProperties(r Relationship) map[string]any {
	return map[string]any{
		"description":       r.Description,
		"weight":            r.Weight,
		"confidence":        r.Confidence,
		"bidirectional":     r.Bidirectional,
		"created_at":        r.CreatedAt.UTC().Format(time.RFC3339),
		"embedding_pending": r.EmbeddingPending,
		"source_entity":     crossRef(ClassEntity, r.SourceEntityID),
		"target_entity":     crossRef(ClassEntity, r.TargetEntityID),
	}
}

// CreateRelationship writes a new RELATES_TO edge.
func (s *Store) CreateRelationship(ctx context.Context, r Relationship, embedding []float32) (string, error) {
	r.EmbeddingPending = len(embedding) == 0
	creator := s.client.Data().Creator().
		WithClassName(ClassRelationship).
		WithProperties(relationshipToProperties(r))
	if len(embedding) > 0 {
		creator = creator.WithVector(embedding)
	}
	result, err := creator.Do(ctx)
	if err != nil {
		return "", fmt.Errorf("graph: creating relationship: %w", err)
	}
	return result.Object.ID.String(), nil
}

// UpdateRelationship overwrites an existing edge's description, weight,
// and confidence when source material refines it.
func (s *Store) UpdateRelationship(ctx context.Context, id string, r Relationship, embedding []float32) error {
	r.EmbeddingPending = len(embedding) == 0
	updater := s.client.Data().Updater().
		WithClassName(ClassRelationship).
		WithID(id).
		WithProperties(relationshipToProperties(r))
	if len(embedding) > 0 {
		updater = updater.WithVector(embedding)
	}
	if err := updater.Do(ctx); err != nil {
		return fmt.Errorf("graph: updating relationship %s: %w", id, err)
	}
	return nil
}

type relationshipRecord struct {
	Description      string     `json:"description"`
	Weight           float64    `json:"weight"`
	Confidence       float64    `json:"confidence"`
	Bidirectional    bool       `json:"bidirectional"`
	CreatedAt        string     `json:"created_at"`
	EmbeddingPending bool       `json:"embedding_pending"`
	SourceEntity     []struct {
		Additional additional `json:"_additional"`
	} `json:"source_entity"`
	TargetEntity []struct {
		Additional additional `json:"_additional"`
	} `json:"target_entity"`
	Additional additional `json:"_additional"`
}

func (r relationshipRecord) toRelationship() Relationship {
	rel := Relationship{
		ID:               r.Additional.ID,
		Description:      r.Description,
		Weight:           r.Weight,
		Confidence:       r.Confidence,
		Bidirectional:    r.Bidirectional,
		EmbeddingPending: r.EmbeddingPending,
	}
	rel.CreatedAt, _ = time.Parse(time.RFC3339, r.CreatedAt)
	if len(r.SourceEntity) > 0 {
		rel.SourceEntityID = r.SourceEntity[0].Additional.ID
	}
	if len(r.TargetEntity) > 0 {
		rel.TargetEntityID = r.TargetEntity[0].Additional.ID
	}
	return rel
}

var relationshipFields = []graphql.Field{
	{Name: "description"},
	{Name: "weight"},
	{Name: "confidence"},
	{Name: "bidirectional"},
	{Name: "created_at"},
	{Name: "embedding_pending"},
	{Name: "source_entity", Fields: []graphql.Field{{Name: "... on Entity", Fields: []graphql.Field{{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}}}}},
	{Name: "target_entity", Fields: []graphql.Field{{Name: "... on Entity", Fields: []graphql.Field{{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}}}}},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
}

type relationshipGetResponse struct {
	Get struct {
		Relationship []relationshipRecord `json:"Relationship"`
	} `json:"Get"`
}

// TraverseRelationships returns every edge touching entityID in either
// direction (bidirectional relationships are stored as a single edge with
// the flag set and traversed both ways).
func (s *Store) TraverseRelationships(ctx context.Context, entityID string, limit int) ([]Relationship, error) {
	fromFilter := filters.Where().WithPath([]string{"source_entity", ClassEntity, "id"}).WithOperator(filters.Equal).WithValueString(entityID)
	toFilter := filters.Where().WithPath([]string{"target_entity", ClassEntity, "id"}).WithOperator(filters.Equal).WithValueString(entityID)
	combined := filters.Where().WithOperator(filters.Or).WithOperands([]*filters.WhereBuilder{fromFilter, toFilter})

	result, err := s.client.GraphQL().Get().
		WithClassName(ClassRelationship).
		WithFields(relationshipFields...).
		WithWhere(combined).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: traversing relationships for %s: %w", entityID, err)
	}
	parsed, err := parseGraphQLResponse[relationshipGetResponse](result)
	if err != nil {
		return nil, err
	}
	out := make([]Relationship, 0, len(parsed.Get.Relationship))
	for _, r := range parsed.Get.Relationship {
		out = append(out, r.toRelationship())
	}
	return out, nil
}

// SearchRelationshipsFullText runs BM25 over relationship description.
func (s *Store) SearchRelationshipsFullText(ctx context.Context, query string, limit int) ([]Relationship, error) {
	result, err := s.client.GraphQL().Get().
		WithClassName(ClassRelationship).
		WithFields(relationshipFields...).
		WithBM25(s.client.GraphQL().Bm25ArgBuilder().WithQuery(query).WithProperties("description")).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: full-text relationship search: %w", err)
	}
	parsed, err := parseGraphQLResponse[relationshipGetResponse](result)
	if err != nil {
		return nil, err
	}
	out := make([]Relationship, 0, len(parsed.Get.Relationship))
	for _, r := range parsed.Get.Relationship {
		out = append(out, r.toRelationship())
	}
	return out, nil
}

// ReassignRelationship points an edge at a new entity on one side, used by
// merge_entities to rewrite RELATES_TO edges onto the surviving target.
func (s *Store) ReassignRelationship(ctx context.Context, id string, newSourceID, newTargetID string) error {
	props := map[string]any{}
	if newSourceID != "" {
		props["source_entity"] = crossRef(ClassEntity, newSourceID)
	}
	if newTargetID != "" {
		props["target_entity"] = crossRef(ClassEntity, newTargetID)
	}
	if len(props) == 0 {
		return nil
	}
	if err := s.client.Data().Merger().
		WithClassName(ClassRelationship).
		WithID(id).
		WithProperties(props).
		Do(ctx); err != nil {
		return fmt.Errorf("graph: reassigning relationship %s: %w", id, err)
	}
	return nil
}
