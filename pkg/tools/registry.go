package tools

import (
	"fmt"

	"github.com/autosint/engine/pkg/config"
	"github.com/autosint/engine/pkg/session"
)

// Registry is the process-wide mapping from tool name to implementation.
type Registry struct {
	handlers map[session.Role]map[string]HandlerFunc
}

// NewRegistry builds an empty Registry; callers populate it via Register
// before calling Validate.
func NewRegistry() *Registry {
	return &Registry{handlers: map[session.Role]map[string]HandlerFunc{
		session.RoleAnalyst:   {},
		session.RoleProcessor: {},
	}}
}

// Register adds a handler for (role, toolName). Panics on duplicate
// registration, since that indicates a programming error, not runtime
// data.
func (r *Registry) Register(role session.Role, toolName string, fn HandlerFunc) {
	if _, exists := r.handlers[role][toolName]; exists {
		panic(fmt.Sprintf("tools: duplicate handler registered for %s/%s", role, toolName))
	}
	r.handlers[role][toolName] = fn
}

// Validate fails fast when a loaded schema has no registered handler, or
// a registered handler has no loaded schema.
func (r *Registry) Validate(cfg *config.Config) error {
	for _, role := range []session.Role{session.RoleAnalyst, session.RoleProcessor} {
		schemas := cfg.ToolSchemasForRole(string(role))
		for name := range schemas {
			if _, ok := r.handlers[role][name]; !ok {
				return fmt.Errorf("tools: schema %q for role %s has no registered handler", name, role)
			}
		}
		for name := range r.handlers[role] {
			if _, ok := schemas[name]; !ok {
				return fmt.Errorf("tools: handler %q for role %s has no loaded schema", name, role)
			}
		}
	}
	return nil
}

func (r *Registry) lookup(role session.Role, name string) (HandlerFunc, bool) {
	fn, ok := r.handlers[role][name]
	return fn, ok
}
