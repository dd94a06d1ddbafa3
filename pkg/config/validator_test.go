package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDocument() Document {
	doc := defaultDocument()
	doc.Embeddings.Provider = "openai-compatible"
	doc.Embeddings.Model = "text-embedding-3-small"
	doc.Embeddings.Dimensions = 1536
	doc.LLM.Analyst = LLMRoleConfig{Provider: "anthropic", Model: "claude-sonnet"}
	doc.LLM.Processor = LLMRoleConfig{Provider: "anthropic", Model: "claude-haiku"}
	doc.Graph = GraphConfig{Scheme: "http", Host: "localhost:8080"}
	doc.Relational = RelationalConfig{DSN: "RELATIONAL_DSN", MaxConns: 10}
	doc.Queue.Addr = "localhost:6379"
	doc.ExternalModules = ExternalModulesConfig{
		FetchBaseURL:  "http://fetch.internal",
		GeoBaseURL:    "http://geo.internal",
		ScribeBaseURL: "http://scribe.internal",
	}
	return doc
}

func TestValidateAcceptsFullyPopulatedDocument(t *testing.T) {
	err := Validate(validDocument())
	require.NoError(t, err)
}

func TestValidateRejectsDefaultDocumentAlone(t *testing.T) {
	// defaultDocument() deliberately leaves store/provider/LLM fields blank;
	// those are always user-supplied, never defaulted.
	err := Validate(defaultDocument())
	assert.Error(t, err)
}

func TestValidateRejectsBadGraphScheme(t *testing.T) {
	doc := validDocument()
	doc.Graph.Scheme = "ftp"
	err := Validate(doc)
	assert.Error(t, err)
}

func TestValidateRejectsNonURLExternalModule(t *testing.T) {
	doc := validDocument()
	doc.ExternalModules.FetchBaseURL = "not-a-url"
	err := Validate(doc)
	assert.Error(t, err)
}

func TestValidateRejectsZeroHeartbeatTTL(t *testing.T) {
	doc := validDocument()
	doc.Safety.HeartbeatTTL = 0
	err := Validate(doc)
	assert.Error(t, err)
}

func TestValidateRejectsDedupThresholdOutOfRange(t *testing.T) {
	doc := validDocument()
	doc.Dedup.FuzzyThreshold = 1.5
	err := Validate(doc)
	assert.Error(t, err)
}

func TestDefaultWorkOrderPriorityIsNormal(t *testing.T) {
	assert.Equal(t, 1, DefaultWorkOrderPriority)
}
