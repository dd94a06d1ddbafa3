package graph

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

const (
	ClassEntity       = "Entity"
	ClassClaim        = "Claim"
	ClassRelationship = "Relationship"
	ClassMergeAudit   = "MergeAudit"
)

// EnsureSchema creates the four classes backing the graph model if they do
// not already exist. Called once at startup; safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, class := range []*models.Class{entityClass(), claimClass(), relationshipClass(), mergeAuditClass()} {
		exists, err := s.classExists(ctx, class.Class)
		if err != nil {
			return fmt.Errorf("graph: checking class %s: %w", class.Class, err)
		}
		if exists {
			continue
		}
		if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
			return fmt.Errorf("graph: creating class %s: %w", class.Class, err)
		}
	}
	return nil
}

func (s *Store) classExists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.Schema().ClassGetter().WithClassName(name).Do(ctx)
	if err != nil {
		// weaviate-go-client returns a 404-wrapped error when the class is
		// absent; treat any error here as "not found" rather than failing
		// startup on a schema that simply hasn't been created yet.
		return false, nil
	}
	return true, nil
}

func filterableText(name, description string) *models.Property {
	indexFilterable := true
	return &models.Property{
		Name:            name,
		DataType:        []string{"text"},
		Description:     description,
		IndexFilterable: &indexFilterable,
		Tokenization:    "field",
	}
}

func searchableText(name, description string) *models.Property {
	return &models.Property{
		Name:        name,
		DataType:    []string{"text"},
		Description: description,
		Tokenization: "word",
	}
}

func entityClass() *models.Class {
	return &models.Class{
		Class:       ClassEntity,
		Description: "A thing in the world: organization, person, country, publication.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			searchableText("canonical_name", "The entity's canonical display name."),
			{Name: "aliases", DataType: []string{"text[]"}, Description: "Known alternate names."},
			filterableText("kind", "Free-text entity classification."),
			searchableText("summary", "Free-text synthesized summary of current knowledge."),
			{Name: "stub", DataType: []string{"boolean"}, Description: "True until the entity has been elaborated beyond a bare mention."},
			{Name: "last_updated", DataType: []string{"date"}, Description: "Timestamp of the most recent state-changing write."},
			{Name: "embedding_pending", DataType: []string{"boolean"}, Description: "True when the embedding backfill has not yet produced a vector."},
			{Name: "properties_json", DataType: []string{"text"}, Description: "Free-form property map, JSON-encoded."},
			{Name: "external_ids_json", DataType: []string{"text"}, Description: "External identifier map, JSON-encoded."},
		},
	}
}

func claimClass() *models.Class {
	return &models.Class{
		Class:       ClassClaim,
		Description: "A single unit of sourced information. Append-only.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			searchableText("content", "The claim's textual content."),
			{Name: "published_at", DataType: []string{"date"}, Description: "When the source material was published."},
			{Name: "ingested_at", DataType: []string{"date"}, Description: "When this claim entered the graph."},
			filterableText("source_url", "Raw link to the source material."),
			filterableText("attribution_depth", "primary | secondhand | indirect."),
			filterableText("information_type", "assertion | analysis | discourse | testimony."),
			{Name: "embedding_pending", DataType: []string{"boolean"}, Description: "True when the embedding backfill has not yet produced a vector."},
			{Name: "published_by", DataType: []string{ClassEntity}, Description: "The entity this claim is attributed to (PUBLISHED edge)."},
			{Name: "references", DataType: []string{ClassEntity}, Description: "Entities this claim is about (REFERENCES edges, many per claim)."},
		},
	}
}

func relationshipClass() *models.Class {
	return &models.Class{
		Class:       ClassRelationship,
		Description: "A directed RELATES_TO association between two entities.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			searchableText("description", "Free-text description of the association."),
			{Name: "weight", DataType: []string{"number"}, Description: "Relationship strength."},
			{Name: "confidence", DataType: []string{"number"}, Description: "Confidence in the relationship's accuracy."},
			{Name: "bidirectional", DataType: []string{"boolean"}, Description: "When true, traversal treats the edge as undirected."},
			{Name: "created_at", DataType: []string{"date"}, Description: "When the relationship was first recorded."},
			{Name: "embedding_pending", DataType: []string{"boolean"}, Description: "True when the embedding backfill has not yet produced a vector."},
			{Name: "source_entity", DataType: []string{ClassEntity}, Description: "The edge's source entity."},
			{Name: "target_entity", DataType: []string{ClassEntity}, Description: "The edge's target entity."},
		},
	}
}

func mergeAuditClass() *models.Class {
	return &models.Class{
		Class:       ClassMergeAudit,
		Description: "Audit record emitted by merge_entities.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			filterableText("source_id", "The merged-away entity's former id."),
			filterableText("target_id", "The surviving entity's id."),
			{Name: "merged_at", DataType: []string{"date"}, Description: "When the merge executed."},
			{Name: "reason", DataType: []string{"text"}, Description: "Why the merge was performed."},
		},
	}
}
