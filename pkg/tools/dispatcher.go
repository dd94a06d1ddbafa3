package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/autosint/engine/pkg/apperr"
	"github.com/autosint/engine/pkg/config"
	"github.com/autosint/engine/pkg/session"
)

// Dispatcher implements session.ToolExecutor, enforcing the execution
// contract: validate -> invoke -> truncate -> wrap errors.
type Dispatcher struct {
	registry *Registry
	cfg      *config.Config
	schemas  map[session.Role]map[string]*jsonschema.Schema
	hctxBase func(investigationID string, role session.Role) *HandlerContext

	// OnHandlerError, when set, is called with a handler's raw (unwrapped)
	// error after every failed tool call, so a caller outside this package
	// can inspect apperr.IsHardDependency/IsSoftDependency and drive circuit
	// accounting. The tool result still reaches the LLM as plain text;
	// this hook exists because ToolResult.Content erases the apperr.Kind.
	OnHandlerError func(err error)
}

// NewDispatcher compiles every loaded tool schema once at startup and
// pairs it with the registry.
func NewDispatcher(registry *Registry, cfg *config.Config, hctxBase func(investigationID string, role session.Role) *HandlerContext) (*Dispatcher, error) {
	d := &Dispatcher{
		registry: registry,
		cfg:      cfg,
		schemas:  map[session.Role]map[string]*jsonschema.Schema{},
		hctxBase: hctxBase,
	}
	for _, role := range []session.Role{session.RoleAnalyst, session.RoleProcessor} {
		d.schemas[role] = map[string]*jsonschema.Schema{}
		for name, doc := range cfg.ToolSchemasForRole(string(role)) {
			schema, err := compileParameterSchema(name, doc.Parameters)
			if err != nil {
				return nil, err
			}
			d.schemas[role][name] = schema
		}
	}
	return d, nil
}

func compileParameterSchema(name string, params json.RawMessage) (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal(params, &doc); err != nil {
		return nil, fmt.Errorf("tools: parsing parameter schema for %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	resourceURI := name + ".json"
	if err := compiler.AddResource(resourceURI, doc); err != nil {
		return nil, fmt.Errorf("tools: adding schema resource for %s: %w", name, err)
	}
	schema, err := compiler.Compile(resourceURI)
	if err != nil {
		return nil, fmt.Errorf("tools: compiling schema for %s: %w", name, err)
	}
	return schema, nil
}

// Execute implements session.ToolExecutor.
func (d *Dispatcher) Execute(ctx context.Context, role session.Role, call session.ToolCall) session.ToolResult {
	handler, ok := d.registry.lookup(role, call.Name)
	if !ok {
		return session.ToolResult{Malformed: true, IsError: true, Content: fmt.Sprintf("unknown tool %q", call.Name)}
	}

	schema := d.schemas[role][call.Name]
	var decoded any
	if err := json.Unmarshal(call.Arguments, &decoded); err != nil {
		return session.ToolResult{Malformed: true, IsError: true, Content: fmt.Sprintf("invalid JSON arguments: %v", err)}
	}
	if schema != nil {
		if err := schema.Validate(decoded); err != nil {
			return session.ToolResult{Malformed: true, IsError: true, Content: fmt.Sprintf("arguments failed schema validation: %v", err)}
		}
	}

	doc, _ := d.cfg.ToolSchema(string(role), call.Name)
	timeout := time.Duration(doc.Handler.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hctx := d.hctxBase(investigationIDFrom(ctx), role)
	result, err := handler(handlerCtx, hctx, call.Arguments)
	if err != nil {
		if d.OnHandlerError != nil {
			d.OnHandlerError(err)
		}
		return session.ToolResult{IsError: true, Content: errorContent(err)}
	}

	content := d.serializeAndTruncate(call.Name, result, doc.Handler)

	toolResult := session.ToolResult{Content: content}
	if role == session.RoleAnalyst {
		switch call.Name {
		case session.ToolCreateWorkOrder:
			if wo, ok := result.(*session.WorkOrderDraft); ok {
				toolResult.WorkOrder = wo
			}
		case session.ToolProduceAssessment:
			if a, ok := result.(*session.AssessmentDraft); ok {
				toolResult.Assessment = a
			}
		}
	}
	return toolResult
}

func (d *Dispatcher) serializeAndTruncate(toolName string, result any, handlerCfg config.HandlerConfig) string {
	switch v := result.(type) {
	case map[string]any:
		if list, ok := v["results"].([]any); ok {
			truncated, omitted := truncateResultList(list, handlerCfg.MaxListItems)
			v = withOmitted(truncated, omitted)
		}
		if _, isEntity := v["canonical_name"]; isEntity && handlerCfg.MaxResultBytes > 0 {
			v = truncateEntityProperties(v, handlerCfg.MaxResultBytes)
		}
		raw, _ := json.Marshal(v)
		return truncateBytes(raw, handlerCfg.MaxResultBytes)
	default:
		raw, _ := json.Marshal(result)
		return truncateBytes(raw, handlerCfg.MaxResultBytes)
	}
}

func errorContent(err error) string {
	if kind := apperr.TargetOf(err); kind != "" {
		return fmt.Sprintf("%s: %v", kind, err)
	}
	return err.Error()
}

type investigationIDKey struct{}

// WithInvestigationID threads the investigation id through ctx so Execute
// can rebuild a HandlerContext without widening ToolExecutor's signature.
func WithInvestigationID(ctx context.Context, investigationID string) context.Context {
	return context.WithValue(ctx, investigationIDKey{}, investigationID)
}

func investigationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(investigationIDKey{}).(string)
	return id
}
