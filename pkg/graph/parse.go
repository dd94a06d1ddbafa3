package graph

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// parseGraphQLResponse decodes a Weaviate GraphQL response's dynamic Data
// field into a strongly-typed struct. T's json tags must match the
// requested field shape.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("graph: nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graph: GraphQL error: %s", resp.Errors[0].Message)
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("graph: marshaling response data: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("graph: unmarshaling into %T: %w", out, err)
	}
	return &out, nil
}

type additional struct {
	ID        string  `json:"id"`
	Certainty float64 `json:"certainty"`
	Score     string  `json:"score"`
}
