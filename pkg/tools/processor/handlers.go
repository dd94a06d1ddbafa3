// Package processor implements the Processor role's tool set:
// entity/claim/relationship writes with the dedup cascade, the Fetch
// source/URL/browser tools, and Scribe transcription.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/autosint/engine/pkg/apperr"
	"github.com/autosint/engine/pkg/external/fetch"
	"github.com/autosint/engine/pkg/external/scribe"
	"github.com/autosint/engine/pkg/graph"
	"github.com/autosint/engine/pkg/session"
	"github.com/autosint/engine/pkg/tools"
)

// dedupCfg holds the cascade thresholds used by search_entities' dedup
// path; SetDedupConfig overrides it once during wiring from loaded
// configuration so thresholds stay configuration-driven rather than
// hardcoded in the handler.
var dedupCfg = graph.DedupConfig{
	FuzzyThreshold:     0.85,
	EmbeddingThreshold: 0.90,
	ShortlistSize:      10,
}

// SetDedupConfig overrides the thresholds used by search_entities'
// dedup-aware path; called once during wiring from loaded config.
func SetDedupConfig(cfg graph.DedupConfig) {
	dedupCfg = cfg
}

// Register wires every Processor tool name to its handler.
func Register(r *tools.Registry) {
	r.Register(session.RoleProcessor, "search_entities", searchEntitiesDedup)
	r.Register(session.RoleProcessor, "create_entity", createEntity)
	r.Register(session.RoleProcessor, "update_entity", updateEntity)
	r.Register(session.RoleProcessor, "update_entity_with_change_claim", updateEntityWithChangeClaim)
	r.Register(session.RoleProcessor, "create_claim", createClaim)
	r.Register(session.RoleProcessor, "create_relationship", createRelationship)
	r.Register(session.RoleProcessor, "update_relationship", updateRelationship)
	r.Register(session.RoleProcessor, "batch_extract", batchExtract)
	r.Register(session.RoleProcessor, "fetch_url", fetchURL)
	r.Register(session.RoleProcessor, "fetch_source_catalog", fetchSourceCatalog)
	r.Register(session.RoleProcessor, "fetch_source_query", fetchSourceQuery)
	r.Register(session.RoleProcessor, "browse_url", browseURL)
	r.Register(session.RoleProcessor, "browser_open", browserOpen)
	r.Register(session.RoleProcessor, "browser_click", browserClick)
	r.Register(session.RoleProcessor, "browser_fill", browserFill)
	r.Register(session.RoleProcessor, "browser_scroll", browserScroll)
	r.Register(session.RoleProcessor, "browser_close", browserClose)
	r.Register(session.RoleProcessor, "submit_transcription", submitTranscription)
	r.Register(session.RoleProcessor, "get_transcription", getTranscription)
}

// classify wraps a raw graph-store error as a hard-dependency apperr.Error
// unless it is already classified, so the orchestrator's circuit
// accounting can see graph outages through tool results
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

func embedOne(ctx context.Context, hctx *tools.HandlerContext, text string) []float32 {
	if hctx.Embeddings == nil || text == "" {
		return nil
	}
	vectors, err := hctx.Embeddings.Embed(ctx, []string{text})
	if err != nil || len(vectors) == 0 {
		return nil
	}
	return vectors[0]
}

// searchEntitiesDedup runs the dedup cascade ahead of extraction so the
// Processor can decide create_entity vs update_entity before writing.
func searchEntitiesDedup(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		Name  string `json:"name"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding search_entities args: %w", err)
	}
	embedding := embedOne(ctx, hctx, in.Name)
	match, candidates, err := hctx.Graph.Dedup(ctx, in.Name, embedding, dedupCfg)
	if err != nil {
		return nil, classify("graph", err)
	}
	results := make([]any, len(candidates))
	for i, c := range candidates {
		results[i] = map[string]any{
			"id":             c.ID,
			"canonical_name": c.CanonicalName,
			"kind":           c.Kind,
		}
	}
	return map[string]any{
		"match_kind":  match.Kind,
		"entity_id":   match.EntityID,
		"confidence":  match.Confidence,
		"results":     results,
	}, nil
}

func createEntity(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		CanonicalName string            `json:"canonical_name"`
		Aliases       []string          `json:"aliases"`
		Kind          string            `json:"kind"`
		Summary       string            `json:"summary"`
		Stub          bool              `json:"stub"`
		Properties    map[string]any    `json:"properties"`
		ExternalIDs   map[string]string `json:"external_ids"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding create_entity args: %w", err)
	}
	embedding := embedOne(ctx, hctx, in.CanonicalName+" "+in.Summary)
	e := graph.Entity{
		CanonicalName: in.CanonicalName,
		Aliases:       in.Aliases,
		Kind:          in.Kind,
		Summary:       in.Summary,
		Stub:          in.Stub,
		Properties:    in.Properties,
		ExternalIDs:   in.ExternalIDs,
	}
	id, err := hctx.Graph.CreateEntity(ctx, e, embedding)
	if err != nil {
		return nil, classify("graph", err)
	}
	return map[string]any{"id": id}, nil
}

func updateEntity(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		ID            string            `json:"id"`
		CanonicalName string            `json:"canonical_name"`
		Aliases       []string          `json:"aliases"`
		Kind          string            `json:"kind"`
		Summary       string            `json:"summary"`
		Stub          bool              `json:"stub"`
		Properties    map[string]any    `json:"properties"`
		ExternalIDs   map[string]string `json:"external_ids"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding update_entity args: %w", err)
	}
	embedding := embedOne(ctx, hctx, in.CanonicalName+" "+in.Summary)
	e := graph.Entity{
		CanonicalName: in.CanonicalName,
		Aliases:       in.Aliases,
		Kind:          in.Kind,
		Summary:       in.Summary,
		Stub:          in.Stub,
		Properties:    in.Properties,
		ExternalIDs:   in.ExternalIDs,
	}
	if err := hctx.Graph.UpdateEntity(ctx, in.ID, e, embedding); err != nil {
		return nil, classify("graph", err)
	}
	return map[string]any{"id": in.ID, "status": "updated"}, nil
}

// updateEntityWithChangeClaim updates an entity and records the
// justifying claim in the same handler call, since Entity mutation
// without a supporting Claim would leave the change unattributed.
func updateEntityWithChangeClaim(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		ID            string            `json:"id"`
		CanonicalName string            `json:"canonical_name"`
		Aliases       []string          `json:"aliases"`
		Kind          string            `json:"kind"`
		Summary       string            `json:"summary"`
		Properties    map[string]any    `json:"properties"`
		ExternalIDs   map[string]string `json:"external_ids"`
		Claim         claimInput        `json:"claim"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding update_entity_with_change_claim args: %w", err)
	}
	embedding := embedOne(ctx, hctx, in.CanonicalName+" "+in.Summary)
	e := graph.Entity{
		CanonicalName: in.CanonicalName,
		Aliases:       in.Aliases,
		Kind:          in.Kind,
		Summary:       in.Summary,
		Properties:    in.Properties,
		ExternalIDs:   in.ExternalIDs,
	}
	if err := hctx.Graph.UpdateEntity(ctx, in.ID, e, embedding); err != nil {
		return nil, classify("graph", err)
	}
	in.Claim.PublishedByEntityID = in.ID
	claimID, err := createClaimRecord(ctx, hctx, in.Claim)
	if err != nil {
		return nil, classify("graph", err)
	}
	return map[string]any{"id": in.ID, "status": "updated", "claim_id": claimID}, nil
}

type claimInput struct {
	Content             string   `json:"content"`
	PublishedAt         string   `json:"published_at"`
	SourceURL           string   `json:"source_url"`
	AttributionDepth    string   `json:"attribution_depth"`
	InformationType     string   `json:"information_type"`
	PublishedByEntityID string   `json:"published_by_entity_id"`
	ReferencesEntityIDs []string `json:"references_entity_ids"`
}

func createClaimRecord(ctx context.Context, hctx *tools.HandlerContext, in claimInput) (string, error) {
	publishedAt := time.Now().UTC()
	if in.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, in.PublishedAt); err == nil {
			publishedAt = t
		}
	}
	embedding := embedOne(ctx, hctx, in.Content)
	c := graph.Claim{
		Content:             in.Content,
		PublishedAt:         publishedAt,
		IngestedAt:          time.Now().UTC(),
		SourceURL:           in.SourceURL,
		AttributionDepth:    graph.AttributionDepth(in.AttributionDepth),
		InformationType:     graph.InformationType(in.InformationType),
		PublishedByEntityID: in.PublishedByEntityID,
		ReferencesEntityIDs: in.ReferencesEntityIDs,
	}
	id, err := hctx.Graph.CreateClaim(ctx, c, embedding)
	return id, classify("graph", err)
}

func createClaim(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in claimInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding create_claim args: %w", err)
	}
	id, err := createClaimRecord(ctx, hctx, in)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

type relationshipInput struct {
	SourceEntityID string  `json:"source_entity_id"`
	TargetEntityID string  `json:"target_entity_id"`
	Description    string  `json:"description"`
	Weight         float64 `json:"weight"`
	Confidence     float64 `json:"confidence"`
	Bidirectional  bool    `json:"bidirectional"`
}

func createRelationship(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in relationshipInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding create_relationship args: %w", err)
	}
	embedding := embedOne(ctx, hctx, in.Description)
	r := graph.Relationship{
		SourceEntityID: in.SourceEntityID,
		TargetEntityID: in.TargetEntityID,
		Description:    in.Description,
		Weight:         in.Weight,
		Confidence:     in.Confidence,
		Bidirectional:  in.Bidirectional,
		CreatedAt:      time.Now().UTC(),
	}
	id, err := hctx.Graph.CreateRelationship(ctx, r, embedding)
	if err != nil {
		return nil, classify("graph", err)
	}
	return map[string]any{"id": id}, nil
}

func updateRelationship(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		ID string `json:"id"`
		relationshipInput
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding update_relationship args: %w", err)
	}
	embedding := embedOne(ctx, hctx, in.Description)
	r := graph.Relationship{
		SourceEntityID: in.SourceEntityID,
		TargetEntityID: in.TargetEntityID,
		Description:    in.Description,
		Weight:         in.Weight,
		Confidence:     in.Confidence,
		Bidirectional:  in.Bidirectional,
	}
	if err := hctx.Graph.UpdateRelationship(ctx, in.ID, r, embedding); err != nil {
		return nil, classify("graph", err)
	}
	return map[string]any{"id": in.ID, "status": "updated"}, nil
}

// batchExtract lets the Processor submit entities, claims, and
// relationships for one source document in a single tool call. Texts are
// collected and embedded with one batched call rather than one embedding
// round trip per record.
func batchExtract(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		Entities []struct {
			CanonicalName string         `json:"canonical_name"`
			Aliases       []string       `json:"aliases"`
			Kind          string         `json:"kind"`
			Summary       string         `json:"summary"`
			Properties    map[string]any `json:"properties"`
		} `json:"entities"`
		Claims        []claimInput        `json:"claims"`
		Relationships []relationshipInput `json:"relationships"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding batch_extract args: %w", err)
	}

	texts := make([]string, 0, len(in.Entities)+len(in.Claims)+len(in.Relationships))
	for _, ent := range in.Entities {
		texts = append(texts, ent.CanonicalName+" "+ent.Summary)
	}
	for _, c := range in.Claims {
		texts = append(texts, c.Content)
	}
	for _, r := range in.Relationships {
		texts = append(texts, r.Description)
	}
	var embeddings [][]float32
	if hctx.Embeddings != nil && len(texts) > 0 {
		vectors, err := hctx.Embeddings.Embed(ctx, texts)
		if err == nil {
			embeddings = vectors
		}
	}
	next := func() []float32 {
		if len(embeddings) == 0 {
			return nil
		}
		v := embeddings[0]
		embeddings = embeddings[1:]
		return v
	}

	entityIDs := make([]string, 0, len(in.Entities))
	for _, ent := range in.Entities {
		id, err := hctx.Graph.CreateEntity(ctx, graph.Entity{
			CanonicalName: ent.CanonicalName,
			Aliases:       ent.Aliases,
			Kind:          ent.Kind,
			Summary:       ent.Summary,
			Properties:    ent.Properties,
		}, next())
		if err != nil {
			return nil, classify("graph", err)
		}
		entityIDs = append(entityIDs, id)
	}
	claimIDs := make([]string, 0, len(in.Claims))
	for _, c := range in.Claims {
		publishedAt := time.Now().UTC()
		if c.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, c.PublishedAt); err == nil {
				publishedAt = t
			}
		}
		id, err := hctx.Graph.CreateClaim(ctx, graph.Claim{
			Content:             c.Content,
			PublishedAt:         publishedAt,
			IngestedAt:          time.Now().UTC(),
			SourceURL:           c.SourceURL,
			AttributionDepth:    graph.AttributionDepth(c.AttributionDepth),
			InformationType:     graph.InformationType(c.InformationType),
			PublishedByEntityID: c.PublishedByEntityID,
			ReferencesEntityIDs: c.ReferencesEntityIDs,
		}, next())
		if err != nil {
			return nil, classify("graph", err)
		}
		claimIDs = append(claimIDs, id)
	}
	relationshipIDs := make([]string, 0, len(in.Relationships))
	for _, r := range in.Relationships {
		id, err := hctx.Graph.CreateRelationship(ctx, graph.Relationship{
			SourceEntityID: r.SourceEntityID,
			TargetEntityID: r.TargetEntityID,
			Description:    r.Description,
			Weight:         r.Weight,
			Confidence:     r.Confidence,
			Bidirectional:  r.Bidirectional,
			CreatedAt:      time.Now().UTC(),
		}, next())
		if err != nil {
			return nil, classify("graph", err)
		}
		relationshipIDs = append(relationshipIDs, id)
	}
	return map[string]any{
		"entity_ids":       entityIDs,
		"claim_ids":        claimIDs,
		"relationship_ids": relationshipIDs,
	}, nil
}

func fetchURL(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	if hctx.Fetch == nil {
		return nil, fmt.Errorf("processor: fetch module not configured")
	}
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding fetch_url args: %w", err)
	}
	result, err := hctx.Fetch.FetchURL(ctx, in.URL)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func fetchSourceCatalog(ctx context.Context, hctx *tools.HandlerContext, _ []byte) (any, error) {
	if hctx.Fetch == nil {
		return nil, fmt.Errorf("processor: fetch module not configured")
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

func fetchSourceQuery(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	if hctx.Fetch == nil {
		return nil, fmt.Errorf("processor: fetch module not configured")
	}
	var in struct {
		SourceID string `json:"source_id"`
		Query    string `json:"query"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding fetch_source_query args: %w", err)
	}
	results, err := hctx.Fetch.QuerySource(ctx, in.SourceID, fetch.QuerySourceRequest{Query: in.Query, Limit: in.Limit})
	if err != nil {
		return nil, err
	}
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r
	}
	return map[string]any{"results": out}, nil
}

func browseURL(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	if hctx.Fetch == nil {
		return nil, fmt.Errorf("processor: fetch module not configured")
	}
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding browse_url args: %w", err)
	}
	result, err := hctx.Fetch.BrowseURL(ctx, in.URL)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// browserSessions holds interactive Fetch sessions by handle, since each
// tool call gets a fresh HandlerContext and the websocket connection must
// outlive a single call (browser_open through browser_close).
var browserSessions sync.Map // handle string -> *fetch.Session

func browserOpen(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	if hctx.Fetch == nil {
		return nil, fmt.Errorf("processor: fetch module not configured")
	}
	var in struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding browser_open args: %w", err)
	}
	sess, err := hctx.Fetch.OpenSession(ctx, in.URL)
	if err != nil {
		return nil, err
	}
	handle := fmt.Sprintf("%s-%d", hctx.InvestigationID, time.Now().UnixNano())
	browserSessions.Store(handle, sess)
	return map[string]any{"handle": handle}, nil
}

func loadSession(handle string) (*fetch.Session, error) {
	v, ok := browserSessions.Load(handle)
	if !ok {
		return nil, fmt.Errorf("processor: no open browser session %q", handle)
	}
	return v.(*fetch.Session), nil
}

func browserAction(ctx context.Context, args []byte, action string) (any, error) {
	var in struct {
		Handle string         `json:"handle"`
		Args   map[string]any `json:"args"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding browser_%s args: %w", action, err)
	}
	sess, err := loadSession(in.Handle)
	if err != nil {
		return nil, err
	}
	content, err := sess.Command(ctx, action, in.Args)
	if err != nil {
		return nil, err
	}
	return map[string]any{"content": content}, nil
}

func browserClick(ctx context.Context, _ *tools.HandlerContext, args []byte) (any, error) {
	return browserAction(ctx, args, "click")
}

func browserFill(ctx context.Context, _ *tools.HandlerContext, args []byte) (any, error) {
	return browserAction(ctx, args, "fill")
}

func browserScroll(ctx context.Context, _ *tools.HandlerContext, args []byte) (any, error) {
	return browserAction(ctx, args, "scroll")
}

func browserClose(_ context.Context, _ *tools.HandlerContext, args []byte) (any, error) {
	var in struct {
		Handle string `json:"handle"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding browser_close args: %w", err)
	}
	sess, err := loadSession(in.Handle)
	if err != nil {
		return nil, err
	}
	browserSessions.Delete(in.Handle)
	if err := sess.Close(); err != nil {
		return nil, err
	}
	return map[string]any{"status": "closed"}, nil
}

func submitTranscription(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	if hctx.Scribe == nil {
		return nil, fmt.Errorf("processor: scribe module not configured")
	}
	var in struct {
		MediaURL string `json:"media_url"`
		Platform string `json:"platform"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding submit_transcription args: %w", err)
	}
	jobID, err := hctx.Scribe.SubmitTranscription(ctx, scribe.TranscribeRequest{MediaURL: in.MediaURL, Platform: in.Platform})
	if err != nil {
		return nil, err
	}
	return map[string]any{"job_id": jobID}, nil
}

func getTranscription(ctx context.Context, hctx *tools.HandlerContext, args []byte) (any, error) {
	if hctx.Scribe == nil {
		return nil, fmt.Errorf("processor: scribe module not configured")
	}
	var in struct {
		JobID         string `json:"job_id"`
		TimeoutSeconds int   `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("processor: decoding get_transcription args: %w", err)
	}
	timeout := time.Duration(in.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	result, err := hctx.Scribe.GetTranscription(ctx, in.JobID, timeout)
	if err != nil {
		return nil, err
	}
	return result, nil
}
