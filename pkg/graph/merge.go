package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// ErrAlreadyMerged is returned when merge_entities is called a second time
// for a pair whose first merge already completed.
var ErrAlreadyMerged = errors.New("graph: entities already merged")

func graphqlFieldID() []graphql.Field {
	return []graphql.Field{{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}}}
}

// MergeEntities reassigns PUBLISHED and REFERENCES edges from source onto
// target, rewrites RELATES_TO edges in both directions, combines alias
// sets, deletes source, and emits a MergeAudit record. Calling it twice
// for the same pair after the first call completed is a no-op: source no
// longer exists, so the second call returns ErrAlreadyMerged.
func (s *Store) MergeEntities(ctx context.Context, sourceID, targetID, reason string) error {
	if sourceID == targetID {
		return fmt.Errorf("graph: cannot merge entity %s into itself", sourceID)
	}

	source, err := s.GetEntity(ctx, sourceID)
	if err != nil {
		existing, auditErr := s.findMergeAudit(ctx, sourceID, targetID)
		if auditErr == nil && existing {
			return ErrAlreadyMerged
		}
		return fmt.Errorf("graph: merge source %s not found: %w", sourceID, err)
	}
	target, err := s.GetEntity(ctx, targetID)
	if err != nil {
		return fmt.Errorf("graph: merge target %s not found: %w", targetID, err)
	}

	if err := s.reassignClaimRefs(ctx, sourceID, targetID); err != nil {
		return err
	}
	if err := s.reassignRelationships(ctx, sourceID, targetID); err != nil {
		return err
	}

	target.Aliases = mergeAliases(target, source)
	if err := s.UpdateEntity(ctx, targetID, *target, target.Embedding); err != nil {
		return fmt.Errorf("graph: updating merge target %s: %w", targetID, err)
	}

	if err := s.DeleteEntity(ctx, sourceID); err != nil {
		return fmt.Errorf("graph: deleting merge source %s: %w", sourceID, err)
	}

	if _, err := s.createMergeAudit(ctx, sourceID, targetID, reason); err != nil {
		return fmt.Errorf("graph: recording merge audit: %w", err)
	}
	return nil
}

func mergeAliases(target, source *Entity) []string {
	seen := make(map[string]bool, len(target.Aliases)+len(source.Aliases)+1)
	out := make([]string, 0, len(target.Aliases)+len(source.Aliases)+1)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, a := range target.Aliases {
		add(a)
	}
	add(source.CanonicalName)
	for _, a := range source.Aliases {
		add(a)
	}
	return out
}

// reassignClaimRefs rewrites PUBLISHED and REFERENCES edges from sourceID
// onto targetID. Claims are append-only, so this patches the reference
// lists on existing claim records rather than rewriting claims.
func (s *Store) reassignClaimRefs(ctx context.Context, sourceID, targetID string) error {
	claims, err := s.claimsReferencing(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("graph: finding claims referencing merge source: %w", err)
	}
	for _, c := range claims {
		refs := make([]string, 0, len(c.ReferencesEntityIDs))
		for _, id := range c.ReferencesEntityIDs {
			if id == sourceID {
				id = targetID
			}
			refs = append(refs, id)
		}
		c.ReferencesEntityIDs = refs
		if c.PublishedByEntityID == sourceID {
			c.PublishedByEntityID = targetID
		}
		props := claimToProperties(c)
		if err := s.client.Data().Merger().WithClassName(ClassClaim).WithID(c.ID).WithProperties(props).Do(ctx); err != nil {
			return fmt.Errorf("graph: reassigning claim %s refs: %w", c.ID, err)
		}
	}
	return nil
}

func (s *Store) claimsReferencing(ctx context.Context, entityID string) ([]Claim, error) {
	publishedFilter := filters.Where().WithPath([]string{"published_by", ClassEntity, "id"}).WithOperator(filters.Equal).WithValueString(entityID)
	referencesFilter := filters.Where().WithPath([]string{"references", ClassEntity, "id"}).WithOperator(filters.Equal).WithValueString(entityID)
	combined := filters.Where().WithOperator(filters.Or).WithOperands([]*filters.WhereBuilder{publishedFilter, referencesFilter})

	result, err := s.client.GraphQL().Get().
		WithClassName(ClassClaim).
		WithFields(claimFields...).
		WithWhere(combined).
		WithLimit(1000).
		Do(ctx)
	if err != nil {
		return nil, err
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

func (s *Store) reassignRelationships(ctx context.Context, sourceID, targetID string) error {
	rels, err := s.TraverseRelationships(ctx, sourceID, 1000)
	if err != nil {
		return fmt.Errorf("graph: finding relationships on merge source: %w", err)
	}
	for _, r := range rels {
		var newSource, newTarget string
		if r.SourceEntityID == sourceID {
			newSource = targetID
		}
		if r.TargetEntityID == sourceID {
			newTarget = targetID
		}
		if newSource == "" && newTarget == "" {
			continue
		}
		if err := s.ReassignRelationship(ctx, r.ID, newSource, newTarget); err != nil {
			return fmt.Errorf("graph: reassigning relationship %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *Store) createMergeAudit(ctx context.Context, sourceID, targetID, reason string) (string, error) {
	props := map[string]any{
		"source_id": sourceID,
		"target_id": targetID,
		"merged_at": time.Now().UTC().Format(time.RFC3339),
		"reason":    reason,
	}
	result, err := s.client.Data().Creator().WithClassName(ClassMergeAudit).WithProperties(props).Do(ctx)
	if err != nil {
		return "", err
	}
	return result.Object.ID.String(), nil
}

func (s *Store) findMergeAudit(ctx context.Context, sourceID, targetID string) (bool, error) {
	sourceFilter := filters.Where().WithPath([]string{"source_id"}).WithOperator(filters.Equal).WithValueString(sourceID)
	targetFilter := filters.Where().WithPath([]string{"target_id"}).WithOperator(filters.Equal).WithValueString(targetID)
	combined := filters.Where().WithOperator(filters.And).WithOperands([]*filters.WhereBuilder{sourceFilter, targetFilter})

	result, err := s.client.GraphQL().Get().
		WithClassName(ClassMergeAudit).
		WithFields(graphqlFieldID()...).
		WithWhere(combined).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return false, err
	}
	type auditResponse struct {
		Get struct {
			MergeAudit []struct {
				Additional additional `json:"_additional"`
			} `json:"MergeAudit"`
		} `json:"Get"`
	}
	parsed, err := parseGraphQLResponse[auditResponse](result)
	if err != nil {
		return false, err
	}
	return len(parsed.Get.MergeAudit) > 0, nil
}
