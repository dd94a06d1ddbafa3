package graph

import (
	"fmt"
	"os"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"

	"github.com/autosint/engine/pkg/config"
)

// Store wraps a Weaviate client with the Entity/Claim/Relationship/
// MergeAudit class model.
type Store struct {
	client *weaviate.Client
}

// NewStore builds a Store from the graph section of engine.yaml. APIKey is
// read from the environment variable named in cfg.APIKey, when set; an
// empty value means anonymous access (local dev Weaviate).
func NewStore(cfg config.GraphConfig) (*Store, error) {
	wcfg := weaviate.Config{
		Scheme: cfg.Scheme,
		Host:   cfg.Host,
	}
	if cfg.APIKey != "" {
		key := os.Getenv(cfg.APIKey)
		if key != "" {
			wcfg.AuthConfig = auth.ApiKey{Value: key}
		}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("graph: failed to construct weaviate client: %w", err)
	}
	return &Store{client: client}, nil
}
