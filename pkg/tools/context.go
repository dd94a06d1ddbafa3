// Package tools implements the Tool Dispatcher: schema loading, handler
// registry, the execution contract (validate -> invoke -> truncate ->
// wrap errors), and the Analyst/Processor tool sets.
package tools

import (
	"context"

	"github.com/autosint/engine/pkg/config"
	"github.com/autosint/engine/pkg/embeddings"
	"github.com/autosint/engine/pkg/external/fetch"
	"github.com/autosint/engine/pkg/external/geo"
	"github.com/autosint/engine/pkg/external/scribe"
	"github.com/autosint/engine/pkg/graph"
	"github.com/autosint/engine/pkg/relstore"
	"github.com/autosint/engine/pkg/session"
)

// HandlerContext is threaded into every handler invocation. Handlers are
// pure in the sense that all side effects go through these clients; there
// is no ambient package-level state.
type HandlerContext struct {
	InvestigationID string
	Role            session.Role

	// Config gives handlers read access to their own tool schema's
	// HandlerConfig (e.g. search_claims' preview length) without widening
	// HandlerFunc's signature.
	Config *config.Config

	Graph      *graph.Store
	Relational *relstore.Store
	Embeddings *embeddings.Pipeline

	Fetch  *fetch.Client
	Geo    *geo.Client
	Scribe *scribe.Client
}

// HandlerFunc implements one tool. It returns the value to serialize as the
// tool_result, or an error classified via pkg/apperr. Handlers must not
// block past ctx's deadline.
type HandlerFunc func(ctx context.Context, hctx *HandlerContext, args []byte) (any, error)
