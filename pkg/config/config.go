// Package config loads and validates the Engine's structural configuration
// document, prompt texts, and tool schema documents. Numeric safety and
// concurrency limits are loaded once and require a process restart to
// change; prompts and tool schemas are reloadable on file change or SIGHUP.
package config

import (
	"sync"

	"github.com/autosint/engine/pkg/llm"
)

// Config is the umbrella object returned by Load. It is safe for concurrent
// reads; PromptText and ToolSchema go through an internal RWMutex so a
// reload can swap them in place without disrupting in-flight sessions.
type Config struct {
	configDir string

	// Numeric/limit sections. Immutable after Load; reloading these fields
	// requires a process restart (WatchAndReload in reload.go never touches
	// Doc).
	Doc Document

	promptsMu sync.RWMutex
	prompts   map[string]string // prompt name -> text

	toolsMu    sync.RWMutex
	toolSchemas map[string]ToolSchemaDoc // "analyst/search_entities" -> doc
}

// ConfigDir returns the directory Config was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// Prompt returns the current text for a named prompt (e.g. "analyst",
// "analyst_force_final", "processor"). Safe to call while a reload is in
// flight.
func (c *Config) Prompt(name string) (string, bool) {
	c.promptsMu.RLock()
	defer c.promptsMu.RUnlock()
	p, ok := c.prompts[name]
	return p, ok
}

// ToolSchema returns the declarative schema document for role/tool.
func (c *Config) ToolSchema(role, tool string) (ToolSchemaDoc, bool) {
	c.toolsMu.RLock()
	defer c.toolsMu.RUnlock()
	d, ok := c.toolSchemas[role+"/"+tool]
	return d, ok
}

// ToolSchemasForRole returns all schema documents registered for a role,
// used by the tool dispatcher's startup fail-fast check.
func (c *Config) ToolSchemasForRole(role string) map[string]ToolSchemaDoc {
	c.toolsMu.RLock()
	defer c.toolsMu.RUnlock()
	out := make(map[string]ToolSchemaDoc)
	prefix := role + "/"
	for k, v := range c.toolSchemas {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[v.Name] = v
		}
	}
	return out
}

// ToolSpecsForRole translates every loaded schema document for role into
// the LLM-facing ToolSpec shape, 1:1 (pkg/llm.ToolSpec's doc comment).
func (c *Config) ToolSpecsForRole(role string) []llm.ToolSpec {
	docs := c.ToolSchemasForRole(role)
	specs := make([]llm.ToolSpec, 0, len(docs))
	for _, d := range docs {
		specs = append(specs, llm.ToolSpec{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return specs
}

func (c *Config) setPrompts(p map[string]string) {
	c.promptsMu.Lock()
	defer c.promptsMu.Unlock()
	c.prompts = p
}

func (c *Config) setToolSchemas(s map[string]ToolSchemaDoc) {
	c.toolsMu.Lock()
	defer c.toolsMu.Unlock()
	c.toolSchemas = s
}
