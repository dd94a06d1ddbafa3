// Package graph implements the Graph Store Adapter: entities, claims, and
// relationships over Weaviate, with traversal, semantic, and full-text
// search, the dedup cascade, and entity merge.
package graph

import "time"

// AttributionDepth classifies how directly a Claim traces to its source.
type AttributionDepth string

const (
	AttributionPrimary    AttributionDepth = "primary"
	AttributionSecondhand AttributionDepth = "secondhand"
	AttributionIndirect   AttributionDepth = "indirect"
)

// InformationType classifies the nature of a Claim's content.
type InformationType string

const (
	InformationAssertion InformationType = "assertion"
	InformationAnalysis  InformationType = "analysis"
	InformationDiscourse InformationType = "discourse"
	InformationTestimony InformationType = "testimony"
)

// Entity is a thing in the world: organization, person, country,
// publication, etc.
type Entity struct {
	ID              string
	CanonicalName   string
	Aliases         []string
	Kind            string
	Summary         string
	Stub            bool
	LastUpdated     time.Time
	Embedding       []float32
	EmbeddingPending bool
	Properties      map[string]any
	ExternalIDs     map[string]string
}

// Claim is a single unit of sourced information. Append-only: never
// mutated, never deleted.
type Claim struct {
	ID               string
	Content          string
	PublishedAt      time.Time
	IngestedAt       time.Time
	SourceURL        string
	AttributionDepth AttributionDepth
	InformationType  InformationType
	Embedding        []float32
	EmbeddingPending bool
	PublishedByEntityID string
	ReferencesEntityIDs []string
}

// Relationship is a directed edge between two entities, RELATES_TO, with
// a bidirectional flag collapsing the reverse edge into one record.
type Relationship struct {
	ID               string
	SourceEntityID   string
	TargetEntityID   string
	Description      string
	Weight           float64
	Confidence       float64
	Bidirectional    bool
	CreatedAt        time.Time
	Embedding        []float32
	EmbeddingPending bool
}

// MergeAudit records one merge_entities call for traceability.
type MergeAudit struct {
	ID         string
	SourceID   string
	TargetID   string
	MergedAt   time.Time
	Reason     string
}

// MatchKind discriminates the dedup cascade's verdict.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchProbable MatchKind = "probable"
	MatchNone     MatchKind = "none"
)

// MatchResult is the dedup cascade's return value.
type MatchResult struct {
	Kind       MatchKind
	EntityID   string
	Confidence float64
}

// ClaimFilter parameterizes search_claims' temporal and attribution
// filters.
type ClaimFilter struct {
	PublishedAfter   *time.Time
	PublishedBefore  *time.Time
	AttributionDepth AttributionDepth
	InformationType  InformationType
	SortBy           string // published_timestamp | ingested_timestamp | score
	Limit            int
}
