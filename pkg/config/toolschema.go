package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ToolSchemaDoc is one tool's declarative schema document, loaded from
// config/tools/{role}/{name}.json. It carries both the LLM-facing shape
// and the dispatcher's handler configuration.
type ToolSchemaDoc struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema object
	Handler     HandlerConfig   `json:"handler"`
}

// HandlerConfig holds result-size limits and role-specific knobs consumed
// by the tool dispatcher's truncation logic.
type HandlerConfig struct {
	// MaxResultBytes triggers intelligent truncation when the serialized
	// tool result would exceed this size.
	MaxResultBytes int `json:"max_result_bytes"`
	// MaxListItems caps search-result lists before size-based truncation
	// even applies.
	MaxListItems int `json:"max_list_items"`
	// MaxClaimPreviewChars truncates claim content to a preview before a
	// claim search result is considered for list/size truncation. Zero
	// means no preview truncation (full claim content returned).
	MaxClaimPreviewChars int `json:"max_claim_preview_chars"`
	// Timeout bounds the handler invocation; zero means the dispatcher's
	// default timeout applies.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// loadToolSchemas walks dir/tools/{analyst,processor}/*.json and returns a
// map keyed "role/name" -> doc.
func loadToolSchemas(dir string) (map[string]ToolSchemaDoc, error) {
	out := make(map[string]ToolSchemaDoc)
	roots := []string{"analyst", "processor"}
	for _, role := range roots {
		roleDir := filepath.Join(dir, "tools", role)
		entries, err := os.ReadDir(roleDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading tool schema dir %s: %w", roleDir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(roleDir, e.Name())
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading tool schema %s: %w", path, err)
			}
			var doc ToolSchemaDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("parsing tool schema %s: %w", path, err)
			}
			if doc.Name == "" {
				return nil, fmt.Errorf("tool schema %s missing required 'name' field", path)
			}
			out[role+"/"+doc.Name] = doc
		}
	}
	return out, nil
}

// loadPrompts walks dir/prompts/*.md and returns a map keyed by file stem.
func loadPrompts(dir string) (map[string]string, error) {
	out := make(map[string]string)
	promptDir := filepath.Join(dir, "prompts")
	entries, err := os.ReadDir(promptDir)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading prompt dir %s: %w", promptDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(promptDir, e.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading prompt %s: %w", path, err)
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		out[name] = string(raw)
	}
	return out, nil
}
