package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

func claimToProperties(c Claim) map[string]any {
	var refs models.MultipleRef
	for _, id := range c.ReferencesEntityIDs {
		refs = append(refs, crossRef(ClassEntity, id)...)
	}
	props := map[string]any{
		"content":           c.Content,
		"published_at":      c.PublishedAt.UTC().Format(time.RFC3339),
		"ingested_at":       c.IngestedAt.UTC().Format(time.RFC3339),
		"source_url":        c.SourceURL,
		"attribution_depth": string(c.AttributionDepth),
		"information_type":  string(c.InformationType),
		"embedding_pending": c.EmbeddingPending,
	}
	if c.PublishedByEntityID != "" {
		props["published_by"] = crossRef(ClassEntity, c.PublishedByEntityID)
	}
	if len(refs) > 0 {
		props["references"] = refs
	}
	return props
}

// CreateClaim appends a new Claim. Claims are never updated; retried
// writes that produce duplicate claims are tolerated by design.
func (s *Store) CreateClaim(ctx context.Context, c Claim, embedding []float32) (string, error) {
	c.EmbeddingPending = len(embedding) == 0
	creator := s.client.Data().Creator().
		WithClassName(ClassClaim).
		WithProperties(claimToProperties(c))
	if len(embedding) > 0 {
		creator = creator.WithVector(embedding)
	}
	result, err := creator.Do(ctx)
	if err != nil {
		return "", fmt.Errorf("graph: creating claim: %w", err)
	}
	return result.Object.ID.String(), nil
}

type claimRecord struct {
	Content          string     `json:"content"`
	PublishedAt      string     `json:"published_at"`
	IngestedAt       string     `json:"ingested_at"`
	SourceURL        string     `json:"source_url"`
	AttributionDepth string     `json:"attribution_depth"`
	InformationType  string     `json:"information_type"`
	EmbeddingPending bool       `json:"embedding_pending"`
	Additional       additional `json:"_additional"`
}

func (r claimRecord) toClaim() Claim {
	c := Claim{
		ID:               r.Additional.ID,
		Content:          r.Content,
		SourceURL:        r.SourceURL,
		AttributionDepth: AttributionDepth(r.AttributionDepth),
		InformationType:  InformationType(r.InformationType),
		EmbeddingPending: r.EmbeddingPending,
	}
	c.PublishedAt, _ = time.Parse(time.RFC3339, r.PublishedAt)
	c.IngestedAt, _ = time.Parse(time.RFC3339, r.IngestedAt)
	return c
}

var claimFields = []graphql.Field{
	{Name: "content"},
	{Name: "published_at"},
	{Name: "ingested_at"},
	{Name: "source_url"},
	{Name: "attribution_depth"},
	{Name: "information_type"},
	{Name: "embedding_pending"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
}

type claimGetResponse struct {
	Get struct {
		Claim []claimRecord `json:"Claim"`
	} `json:"Get"`
}

// SearchClaims applies the temporal/attribution filters over Claim
// content, sorted newest first by ingested_at for "ingested_timestamp"
// and by published_at for "published_timestamp" or an empty SortBy. Any
// other SortBy, including "score", applies no sort.
func (s *Store) SearchClaims(ctx context.Context, filter ClaimFilter) ([]Claim, error) {
	var operands []*filters.WhereBuilder
	if filter.PublishedAfter != nil {
		operands = append(operands, filters.Where().
			WithPath([]string{"published_at"}).
			WithOperator(filters.GreaterThan).
			WithValueDate(*filter.PublishedAfter))
	}
	if filter.PublishedBefore != nil {
		operands = append(operands, filters.Where().
			WithPath([]string{"published_at"}).
			WithOperator(filters.LessThan).
			WithValueDate(*filter.PublishedBefore))
	}
	if filter.AttributionDepth != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"attribution_depth"}).
			WithOperator(filters.Equal).
			WithValueString(string(filter.AttributionDepth)))
	}
	if filter.InformationType != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"information_type"}).
			WithOperator(filters.Equal).
			WithValueString(string(filter.InformationType)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	getBuilder := s.client.GraphQL().Get().
		WithClassName(ClassClaim).
		WithFields(claimFields...).
		WithLimit(limit)

	if len(operands) == 1 {
		getBuilder = getBuilder.WithWhere(operands[0])
	} else if len(operands) > 1 {
		getBuilder = getBuilder.WithWhere(filters.Where().WithOperator(filters.And).WithOperands(operands))
	}

	switch filter.SortBy {
	case "ingested_timestamp":
		getBuilder = getBuilder.WithSort(graphql.Sort{Field: "ingested_at", Order: graphql.Desc})
	case "published_timestamp", "":
		getBuilder = getBuilder.WithSort(graphql.Sort{Field: "published_at", Order: graphql.Desc})
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: searching claims: %w", err)
	}
	parsed, err := parseGraphQLResponse[claimGetResponse](result)
	if err != nil {
		return nil, err
	}
	out := make([]Claim, 0, len(parsed.Get.Claim))
	for _, r := range parsed.Get.Claim {
		out = append(out, r.toClaim())
	}
	return out, nil
}

// SearchClaimsSemantic runs nearVector search over claim embeddings. The
// search_claims tool handler does not call it.
func (s *Store) SearchClaimsSemantic(ctx context.Context, vector []float32, limit int) ([]Claim, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	result, err := s.client.GraphQL().Get().
		WithClassName(ClassClaim).
		WithFields(claimFields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: semantic claim search: %w", err)
	}
	parsed, err := parseGraphQLResponse[claimGetResponse](result)
	if err != nil {
		return nil, err
	}
	out := make([]Claim, 0, len(parsed.Get.Claim))
	for _, r := range parsed.Get.Claim {
		out = append(out, r.toClaim())
	}
	return out, nil
}
