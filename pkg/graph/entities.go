package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

func entityToProperties(e Entity) (map[string]any, error) {
	propsJSON, err := json.Marshal(e.Properties)
	if err != nil {
		return nil, fmt.Errorf("graph: encoding entity properties: %w", err)
	}
	extJSON, err := json.Marshal(e.ExternalIDs)
	if err != nil {
		return nil, fmt.Errorf("graph: encoding entity external ids: %w", err)
	}
	return map[string]any{
		"canonical_name":    e.CanonicalName,
		"aliases":           e.Aliases,
		"kind":              e.Kind,
		"summary":           e.Summary,
		"stub":              e.Stub,
		"last_updated":      e.LastUpdated.UTC().Format(time.RFC3339),
		"embedding_pending": e.EmbeddingPending,
		"properties_json":   string(propsJSON),
		"external_ids_json": string(extJSON),
	}, nil
}

// CreateEntity writes a new Entity. When embedding is nil the record is
// written with embedding_pending = true and picked up by the backfill scan.
func (s *Store) CreateEntity(ctx context.Context, e Entity, embedding []float32) (string, error) {
	e.EmbeddingPending = len(embedding) == 0
	props, err := entityToProperties(e)
	if err != nil {
		return "", err
	}
	creator := s.client.Data().Creator().
		WithClassName(ClassEntity).
		WithProperties(props)
	if len(embedding) > 0 {
		creator = creator.WithVector(embedding)
	}
	result, err := creator.Do(ctx)
	if err != nil {
		return "", fmt.Errorf("graph: creating entity: %w", err)
	}
	return result.Object.ID.String(), nil
}

// UpdateEntity overwrites an existing Entity's mutable fields in place;
// entities are updated in place, never append-only.
func (s *Store) UpdateEntity(ctx context.Context, id string, e Entity, embedding []float32) error {
	e.EmbeddingPending = len(embedding) == 0
	props, err := entityToProperties(e)
	if err != nil {
		return err
	}
	updater := s.client.Data().Updater().
		WithClassName(ClassEntity).
		WithID(id).
		WithProperties(props)
	if len(embedding) > 0 {
		updater = updater.WithVector(embedding)
	}
	if err := updater.Do(ctx); err != nil {
		return fmt.Errorf("graph: updating entity %s: %w", id, err)
	}
	return nil
}

// DeleteEntity removes an Entity outright. Only merge_entities and tests
// should call this directly; entities are otherwise immutable-by-id.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	if err := s.client.Data().Deleter().WithClassName(ClassEntity).WithID(id).Do(ctx); err != nil {
		return fmt.Errorf("graph: deleting entity %s: %w", id, err)
	}
	return nil
}

type entityRecord struct {
	CanonicalName    string   `json:"canonical_name"`
	Aliases          []string `json:"aliases"`
	Kind             string   `json:"kind"`
	Summary          string   `json:"summary"`
	Stub             bool     `json:"stub"`
	LastUpdated      string   `json:"last_updated"`
	EmbeddingPending bool     `json:"embedding_pending"`
	PropertiesJSON   string   `json:"properties_json"`
	ExternalIDsJSON  string   `json:"external_ids_json"`
	Additional       entityAdditional `json:"_additional"`
}

// entityAdditional adds the object's vector to the shared _additional
// fields, so entities read back carry their Embedding.
type entityAdditional struct {
	additional
	Vector []float32 `json:"vector"`
}

func (r entityRecord) toEntity() Entity {
	e := Entity{
		ID:               r.Additional.ID,
		Embedding:        r.Additional.Vector,
		CanonicalName:    r.CanonicalName,
		Aliases:          r.Aliases,
		Kind:             r.Kind,
		Summary:          r.Summary,
		Stub:             r.Stub,
		EmbeddingPending: r.EmbeddingPending,
	}
	e.LastUpdated, _ = time.Parse(time.RFC3339, r.LastUpdated)
	_ = json.Unmarshal([]byte(r.PropertiesJSON), &e.Properties)
	_ = json.Unmarshal([]byte(r.ExternalIDsJSON), &e.ExternalIDs)
	return e
}

var entityFields = []graphql.Field{
	{Name: "canonical_name"},
	{Name: "aliases"},
	{Name: "kind"},
	{Name: "summary"},
	{Name: "stub"},
	{Name: "last_updated"},
	{Name: "embedding_pending"},
	{Name: "properties_json"},
	{Name: "external_ids_json"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}, {Name: "vector"}}},
}

type entityGetResponse struct {
	Get struct {
		Entity []entityRecord `json:"Entity"`
	} `json:"Get"`
}

// GetEntity fetches one Entity by id via a where-on-id traversal query,
// since the REST Data().ObjectsGetter() path does not return vectors
// alongside properties the way the GraphQL path does.
func (s *Store) GetEntity(ctx context.Context, id string) (*Entity, error) {
	where := filters.Where().
		WithPath([]string{"id"}).
		WithOperator(filters.Equal).
		WithValueString(id)

	result, err := s.client.GraphQL().Get().
		WithClassName(ClassEntity).
		WithFields(entityFields...).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: fetching entity %s: %w", id, err)
	}
	parsed, err := parseGraphQLResponse[entityGetResponse](result)
	if err != nil {
		return nil, err
	}
	if len(parsed.Get.Entity) == 0 {
		return nil, fmt.Errorf("graph: entity %s not found", id)
	}
	e := parsed.Get.Entity[0].toEntity()
	return &e, nil
}

// SearchEntitiesExact returns entities whose canonical_name or any alias
// exactly matches name, the first stage of the dedup cascade.
func (s *Store) SearchEntitiesExact(ctx context.Context, name string) ([]Entity, error) {
	nameFilter := filters.Where().WithPath([]string{"canonical_name"}).WithOperator(filters.Equal).WithValueString(name)
	aliasFilter := filters.Where().WithPath([]string{"aliases"}).WithOperator(filters.Equal).WithValueString(name)
	combined := filters.Where().WithOperator(filters.Or).WithOperands([]*filters.WhereBuilder{nameFilter, aliasFilter})

	result, err := s.client.GraphQL().Get().
		WithClassName(ClassEntity).
		WithFields(entityFields...).
		WithWhere(combined).
		WithLimit(10).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: exact entity search: %w", err)
	}
	parsed, err := parseGraphQLResponse[entityGetResponse](result)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(parsed.Get.Entity))
	for _, r := range parsed.Get.Entity {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// SearchEntitiesFullText runs a BM25 query over canonical_name and
// aliases.
func (s *Store) SearchEntitiesFullText(ctx context.Context, query string, limit int) ([]Entity, error) {
	result, err := s.client.GraphQL().Get().
		WithClassName(ClassEntity).
		WithFields(entityFields...).
		WithBM25(s.client.GraphQL().Bm25ArgBuilder().WithQuery(query).WithProperties("canonical_name", "aliases")).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: full-text entity search: %w", err)
	}
	parsed, err := parseGraphQLResponse[entityGetResponse](result)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(parsed.Get.Entity))
	for _, r := range parsed.Get.Entity {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// SearchEntitiesSemantic runs a nearVector search over entity embeddings.
// Records with embedding_pending = true are never returned here since
// they carry no vector.
func (s *Store) SearchEntitiesSemantic(ctx context.Context, vector []float32, limit int) ([]Entity, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	result, err := s.client.GraphQL().Get().
		WithClassName(ClassEntity).
		WithFields(entityFields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: semantic entity search: %w", err)
	}
	parsed, err := parseGraphQLResponse[entityGetResponse](result)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(parsed.Get.Entity))
	for _, r := range parsed.Get.Entity {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// ListEmbeddingPending returns up to limit Entity records still awaiting
// an embedding, for the backfill task.
func (s *Store) ListEmbeddingPending(ctx context.Context, limit int) ([]Entity, error) {
	pendingFilter := filters.Where().WithPath([]string{"embedding_pending"}).WithOperator(filters.Equal).WithValueBoolean(true)

	result, err := s.client.GraphQL().Get().
		WithClassName(ClassEntity).
		WithFields(entityFields...).
		WithWhere(pendingFilter).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: listing embedding-pending entities: %w", err)
	}
	parsed, err := parseGraphQLResponse[entityGetResponse](result)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, 0, len(parsed.Get.Entity))
	for _, r := range parsed.Get.Entity {
		out = append(out, r.toEntity())
	}
	return out, nil
}

// UpdateEmbedding patches an existing Entity's vector and clears
// embedding_pending, without touching any other property, for the
// embedding backfill scan.
func (s *Store) UpdateEmbedding(ctx context.Context, id string, vector []float32) error {
	if err := s.client.Data().Merger().
		WithClassName(ClassEntity).
		WithID(id).
		WithProperties(map[string]any{"embedding_pending": false}).
		WithVector(vector).
		Do(ctx); err != nil {
		return fmt.Errorf("graph: updating embedding for entity %s: %w", id, err)
	}
	return nil
}

// CountEmbeddingPending reports the size of the backfill queue, exposed
// as an observable metric.
func (s *Store) CountEmbeddingPending(ctx context.Context) (int, error) {
	pendingFilter := filters.Where().WithPath([]string{"embedding_pending"}).WithOperator(filters.Equal).WithValueBoolean(true)

	result, err := s.client.GraphQL().Aggregate().
		WithClassName(ClassEntity).
		WithWhere(pendingFilter).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("graph: counting embedding-pending entities: %w", err)
	}
	type aggResponse struct {
		Aggregate struct {
			Entity []struct {
				Meta struct {
					Count int `json:"count"`
				} `json:"meta"`
			} `json:"Entity"`
		} `json:"Aggregate"`
	}
	parsed, err := parseGraphQLResponse[aggResponse](result)
	if err != nil {
		return 0, err
	}
	if len(parsed.Aggregate.Entity) == 0 {
		return 0, nil
	}
	return parsed.Aggregate.Entity[0].Meta.Count, nil
}
