// Package geo is a thin client for the Geo spatial oracle, a soft
// dependency specified only by its HTTP contract: query_geo.
package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/autosint/engine/pkg/apperr"
)

// Client wraps Geo's REST surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client targeting baseURL (external_modules.geo_base_url).
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 15 * time.Second}}
}

// Query is the generic request shape accepted by every Geo endpoint
// (context, spatial/nearby, spatial/distance, spatial/route, terrain,
// borders, features); the endpoint itself selects which fields are
// consulted.
type Query struct {
	Endpoint string         `json:"-"`
	Params   map[string]any `json:"params"`
}

// Query backs query_geo, dispatching to one of Geo's POST endpoints.
func (c *Client) Query(ctx context.Context, q Query) (map[string]any, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("geo: encoding query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+q.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("geo: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.KindSoftDependency, "geo", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, apperr.New(apperr.KindSoftDependency, "geo", fmt.Errorf("geo returned status %d", resp.StatusCode))
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.New(apperr.KindSoftDependency, "geo", fmt.Errorf("decoding response: %w", err))
	}
	return out, nil
}

// Capabilities reports the endpoints and feature flags Geo currently
// supports, from GET /capabilities.
func (c *Client) Capabilities(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capabilities", nil)
	if err != nil {
		return nil, fmt.Errorf("geo: building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.KindSoftDependency, "geo", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, apperr.New(apperr.KindSoftDependency, "geo", fmt.Errorf("geo returned status %d", resp.StatusCode))
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.New(apperr.KindSoftDependency, "geo", fmt.Errorf("decoding response: %w", err))
	}
	return out, nil
}
