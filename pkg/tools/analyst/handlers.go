// Package analyst implements the Analyst role's read and write/action
// tools: search/read handlers over the graph and relational stores plus
// create_work_order, merge_entities, and produce_assessment.
package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autosint/engine/pkg/apperr"
	"github.com/autosint/engine/pkg/assess"
	"github.com/autosint/engine/pkg/config"
	"github.com/autosint/engine/pkg/external/geo"
	"github.com/autosint/engine/pkg/graph"
	"github.com/autosint/engine/pkg/session"
	"github.com/autosint/engine/pkg/tools"
)

// Register wires every Analyst tool name to its handler.
func Register(r *tools.Registry) {
	r.Register(session.RoleAnalyst, "search_entities", searchEntities)
	r.Register(session.RoleAnalyst, "get_entity", getEntity)
	r.Register(session.RoleAnalyst, "traverse_relationships", traverseRelationships)
	r.Register(session.RoleAnalyst, "search_relationships", searchRelationships)
	r.Register(session.RoleAnalyst, "search_claims", searchClaims)
	r.Register(session.RoleAnalyst, "search_assessments", searchAssessments)
	r.Register(session.RoleAnalyst, "get_assessment", getAssessment)
	r.Register(session.RoleAnalyst, "get_investigation_history", getInvestigationHistory)
	r.Register(session.RoleAnalyst, "list_fetch_sources", listFetchSources)
	r.Register(session.RoleAnalyst, "query_geo", queryGeo)
	r.Register(session.RoleAnalyst, session.ToolCreateWorkOrder, createWorkOrder)
	r.Register(session.RoleAnalyst, "merge_entities", mergeEntities)
	r.Register(session.RoleAnalyst, session.ToolProduceAssessment, produceAssessment)
}

// classify wraps a raw store error as a hard-dependency apperr.Error
// unless it is already classified, so the orchestrator's circuit
// accounting can see graph/relational outages through tool results
// (tools.Dispatcher.OnHandlerError).
func classify(target string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*apperr.Error); ok {
		return err
	}
	return apperr.New(apperr.KindHardDependency, target, err)
}

func entityToMap(e graph.Entity) map[string]any {
	return map[string]any{
		"id":             e.ID,
		"canonical_name": e.CanonicalName,
		"aliases":        e.Aliases,
		"kind":           e.Kind,
		"summary":        e.Summary,
		"stub":           e.Stub,
		"properties":     e.Properties,
	}
}

func searchEntities(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding search_entities args: %w", err)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	entities, err := hctx.Graph.SearchEntitiesFullText(ctx, in.Query, limit)
	if err != nil {
		return nil, classify("graph", err)
	}
	results := make([]any, len(entities))
	for i, e := range entities {
		results[i] = entityToMap(e)
	}
	return map[string]any{"results": results}, nil
}

func getEntity(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding get_entity args: %w", err)
	}
	e, err := hctx.Graph.GetEntity(ctx, in.ID)
	if err != nil {
		return nil, classify("graph", err)
	}
	return entityToMap(*e), nil
}

func traverseRelationships(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		EntityID string `json:"entity_id"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding traverse_relationships args: %w", err)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	rels, err := hctx.Graph.TraverseRelationships(ctx, in.EntityID, limit)
	if err != nil {
		return nil, classify("graph", err)
	}
	results := make([]any, len(rels))
	for i, r := range rels {
		results[i] = relationshipToMap(r)
	}
	return map[string]any{"results": results}, nil
}

func relationshipToMap(r graph.Relationship) map[string]any {
	return map[string]any{
		"id":             r.ID,
		"source_entity":  r.SourceEntityID,
		"target_entity":  r.TargetEntityID,
		"description":    r.Description,
		"weight":         r.Weight,
		"confidence":     r.Confidence,
		"bidirectional":  r.Bidirectional,
	}
}

func searchRelationships(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding search_relationships args: %w", err)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	rels, err := hctx.Graph.SearchRelationshipsFullText(ctx, in.Query, limit)
	if err != nil {
		return nil, classify("graph", err)
	}
	results := make([]any, len(rels))
	for i, r := range rels {
		results[i] = relationshipToMap(r)
	}
	return map[string]any{"results": results}, nil
}

func claimToMap(c graph.Claim, maxPreview int) map[string]any {
	content := c.Content
	if maxPreview > 0 {
		content = previewString(content, maxPreview)
	}
	return map[string]any{
		"id":                c.ID,
		"content":           content,
		"published_at":      c.PublishedAt,
		"ingested_at":       c.IngestedAt,
		"source_url":        c.SourceURL,
		"attribution_depth": c.AttributionDepth,
		"information_type":  c.InformationType,
	}
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func previewString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func searchClaims(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		PublishedAfter   string `json:"published_after"`
		PublishedBefore  string `json:"published_before"`
		AttributionDepth string `json:"attribution_depth"`
		InformationType  string `json:"information_type"`
		SortBy           string `json:"sort_by"`
		Limit            int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding search_claims args: %w", err)
	}
	filter := graph.ClaimFilter{
		PublishedAfter:   parseTimePtr(in.PublishedAfter),
		PublishedBefore:  parseTimePtr(in.PublishedBefore),
		AttributionDepth: graph.AttributionDepth(in.AttributionDepth),
		InformationType:  graph.InformationType(in.InformationType),
		SortBy:           in.SortBy,
		Limit:            in.Limit,
	}
	claims, err := hctx.Graph.SearchClaims(ctx, filter)
	if err != nil {
		return nil, classify("graph", err)
	}
	previewChars := 0
	if hctx.Config != nil {
		if doc, ok := hctx.Config.ToolSchema(string(session.RoleAnalyst), "search_claims"); ok {
			previewChars = doc.Handler.MaxClaimPreviewChars
		}
	}
	results := make([]any, len(claims))
	for i, c := range claims {
		results[i] = claimToMap(c, previewChars)
	}
	return map[string]any{"results": results}, nil
}

func assessmentToMap(a map[string]any, id, investigationID string, confidence float64) map[string]any {
	return map[string]any{
		"id":               id,
		"investigation_id": investigationID,
		"confidence":       confidence,
		"content":          a,
	}
}

func searchAssessments(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		InvestigationID string `json:"investigation_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding search_assessments args: %w", err)
	}
	assessments, err := hctx.Relational.ListAssessmentsForInvestigation(ctx, in.InvestigationID)
	if err != nil {
		return nil, classify("relational", err)
	}
	results := make([]any, len(assessments))
	for i, a := range assessments {
		results[i] = assessmentToMap(a.Content, a.ID, a.InvestigationID, a.Confidence)
	}
	return map[string]any{"results": results}, nil
}

func getAssessment(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding get_assessment args: %w", err)
	}
	a, err := hctx.Relational.GetAssessment(ctx, in.ID)
	if err != nil {
		return nil, classify("relational", err)
	}
	return assessmentToMap(a.Content, a.ID, a.InvestigationID, a.Confidence), nil
}

func getInvestigationHistory(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	inv, err := hctx.Relational.GetInvestigation(ctx, hctx.InvestigationID)
	if err != nil {
		return nil, classify("relational", err)
	}
	assessments, err := hctx.Relational.ListAssessmentsForInvestigation(ctx, hctx.InvestigationID)
	if err != nil {
		return nil, classify("relational", err)
	}
	return map[string]any{
		"investigation": map[string]any{
			"id":          inv.ID,
			"prompt":      inv.Prompt,
			"status":      inv.Status,
			"cycle_count": inv.CycleCount,
		},
		"assessment_count": len(assessments),
	}, nil
}

func listFetchSources(ctx context.Context, hctx *tools.HandlerContext, _ []byte) (any, error) {
	if hctx.Fetch == nil {
		return nil, fmt.Errorf("analyst: fetch module not configured")
	}
	sources, err := hctx.Fetch.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]any, len(sources))
	for i, s := range sources {
		results[i] = map[string]any{"id": s.ID, "name": s.Name, "description": s.Description}
	}
	return map[string]any{"results": results}, nil
}

func queryGeo(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	if hctx.Geo == nil {
		return nil, fmt.Errorf("analyst: geo module not configured")
	}
	var in struct {
		Endpoint string         `json:"endpoint"`
		Params   map[string]any `json:"params"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding query_geo args: %w", err)
	}
	return hctx.Geo.Query(ctx, geo.Query{Endpoint: in.Endpoint, Params: in.Params})
}

func createWorkOrder(_ context.Context, _ *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		Objective          string         `json:"objective"`
		Priority           int            `json:"priority"`
		ReferencedEntities []string       `json:"referenced_entities"`
		SourceGuidance     map[string]any `json:"source_guidance"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding create_work_order args: %w", err)
	}
	priority := in.Priority
	if priority == 0 {
		priority = config.DefaultWorkOrderPriority
	}
	draft := &session.WorkOrderDraft{
		Objective:          in.Objective,
		Priority:           priority,
		ReferencedEntities: in.ReferencedEntities,
		SourceGuidance:     in.SourceGuidance,
	}
	return draft, nil
}

func mergeEntities(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		Source string `json:"source"`
		Target string `json:"target"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding merge_entities args: %w", err)
	}
	if err := hctx.Graph.MergeEntities(ctx, in.Source, in.Target, in.Reason); err != nil {
		if err == graph.ErrAlreadyMerged {
			return map[string]any{"status": "already_merged"}, nil
		}
		return nil, classify("graph", err)
	}
	return map[string]any{"status": "merged", "target": in.Target}, nil
}

func produceAssessment(_ context.Context, _ *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		Content map[string]any `json:"content"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("analyst: decoding produce_assessment args: %w", err)
	}
	if err := assess.ValidateContent(context.Background(), in.Content); err != nil {
		return nil, err
	}
	return &session.AssessmentDraft{Content: in.Content}, nil
}
