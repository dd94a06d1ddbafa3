// Package assess validates the Analyst's produce_assessment content
// against a fixed JSON Schema: a strict schema enforced at insert time
// rather than an unconstrained JSONB blob.
package assess

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// contentSchemaJSON is the fixed schema for Assessment.content: a
// summary, a confidence-bearing set of findings, and explicit gaps, so
// force-final-assessment mode's "gaps made explicit" instruction has a
// durable place to land.
const contentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["summary", "findings", "gaps"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["statement", "confidence", "entity_refs", "claim_refs"],
        "properties": {
          "statement": {"type": "string", "minLength": 1},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "entity_refs": {"type": "array", "items": {"type": "string"}},
          "claim_refs": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "gaps": {"type": "array", "items": {"type": "string"}}
  }
}`

var contentSchema = mustCompile(contentSchemaJSON)

func mustCompile(schemaJSON string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("assess: invalid embedded schema: %v", err))
	}
	const resourceURI = "assessment-content.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURI, doc); err != nil {
		panic(fmt.Sprintf("assess: adding embedded schema resource: %v", err))
	}
	schema, err := compiler.Compile(resourceURI)
	if err != nil {
		panic(fmt.Sprintf("assess: compiling embedded schema: %v", err))
	}
	return schema
}

// ValidateContent checks an Analyst-produced assessment body against the
// fixed schema before it reaches the relational store.
func ValidateContent(_ context.Context, content map[string]any) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("assess: encoding content for validation: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("assess: decoding content for validation: %w", err)
	}
	if err := contentSchema.Validate(decoded); err != nil {
		return fmt.Errorf("assess: content failed schema validation: %w", err)
	}
	return nil
}

// Confidence extracts the assessment's overall confidence as the mean of
// its findings' confidences, used when the relational row's own
// confidence column needs a value derived from content.
func Confidence(content map[string]any) float64 {
	findings, ok := content["findings"].([]any)
	if !ok || len(findings) == 0 {
		return 0
	}
	var sum float64
	for _, f := range findings {
		if m, ok := f.(map[string]any); ok {
			if c, ok := m["confidence"].(float64); ok {
				sum += c
			}
		}
	}
	return sum / float64(len(findings))
}
