// Package fetch is a thin client for the Fetch data-retrieval service, a
// soft dependency specified only by its HTTP/WS contract: the Processor's
// source catalog, URL fetch, and browser sidecar tools.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/autosint/engine/pkg/apperr"
)

func jsonReader(raw []byte) io.Reader {
	return bytes.NewReader(raw)
}

// Client wraps Fetch's REST surface and opens WS sessions for the browser
// sidecar.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client targeting baseURL (external_modules.fetch_base_url).
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

// Source describes one entry from GET /sources.
type Source struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListSources backs list_fetch_sources (Analyst) and fetch_source_catalog
// (Processor).
func (c *Client) ListSources(ctx context.Context) ([]Source, error) {
	var out []Source
	if err := c.getJSON(ctx, "/sources", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// QuerySourceRequest is the body of POST /sources/{id}/query.
type QuerySourceRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// QuerySourceResult is one document returned by a source query.
type QuerySourceResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// QuerySource backs fetch_source_query.
func (c *Client) QuerySource(ctx context.Context, sourceID string, req QuerySourceRequest) ([]QuerySourceResult, error) {
	var out []QuerySourceResult
	if err := c.postJSON(ctx, fmt.Sprintf("/sources/%s/query", sourceID), req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchRequest is the body of POST /fetch.
type FetchRequest struct {
	URL string `json:"url"`
}

// FetchResult is the document Fetch retrieved for a URL.
type FetchResult struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	FetchedAt   string `json:"fetched_at"`
}

// FetchURL backs fetch_url.
func (c *Client) FetchURL(ctx context.Context, url string) (*FetchResult, error) {
	var out FetchResult
	if err := c.postJSON(ctx, "/fetch", FetchRequest{URL: url}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BrowseRequest is the body of POST /browse (one-shot render+extract).
type BrowseRequest struct {
	URL string `json:"url"`
}

// BrowseResult is the rendered page content from POST /browse.
type BrowseResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// BrowseURL backs browse_url.
func (c *Client) BrowseURL(ctx context.Context, url string) (*BrowseResult, error) {
	var out BrowseResult
	if err := c.postJSON(ctx, "/browse", BrowseRequest{URL: url}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session is an interactive browser session over WS /browse/session,
// backing browser_open/click/fill/scroll/close.
type Session struct {
	conn *websocket.Conn
}

// OpenSession opens a new interactive browser session.
func (c *Client) OpenSession(ctx context.Context, startURL string) (*Session, error) {
	wsURL := toWebsocketURL(c.baseURL) + "/browse/session"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, apperr.New(apperr.KindSoftDependency, "fetch", fmt.Errorf("opening browser session: %w", err))
	}
	sess := &Session{conn: conn}
	if err := sess.command(ctx, "open", map[string]any{"url": startURL}); err != nil {
		conn.Close(websocket.StatusInternalError, "open failed")
		return nil, err
	}
	return sess, nil
}

type browserCommand struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

type browserReply struct {
	OK      bool   `json:"ok"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

func (s *Session) command(ctx context.Context, action string, args map[string]any) error {
	_, err := s.Command(ctx, action, args)
	return err
}

// Command sends one browser action (click/fill/scroll) and returns the
// sidecar's reply content.
func (s *Session) Command(ctx context.Context, action string, args map[string]any) (string, error) {
	if err := wsjson(ctx, s.conn, browserCommand{Action: action, Args: args}); err != nil {
		return "", apperr.New(apperr.KindSoftDependency, "fetch", err)
	}
	var reply browserReply
	if err := wsjsonRead(ctx, s.conn, &reply); err != nil {
		return "", apperr.New(apperr.KindSoftDependency, "fetch", err)
	}
	if !reply.OK {
		return "", apperr.New(apperr.KindSoftDependency, "fetch", fmt.Errorf("browser session error: %s", reply.Error))
	}
	return reply.Content, nil
}

// Close ends the browser session, backing browser_close.
func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

func wsjson(ctx context.Context, conn *websocket.Conn, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, raw)
}

func wsjsonRead(ctx context.Context, conn *websocket.Conn, v any) error {
	_, raw, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func toWebsocketURL(baseURL string) string {
	switch {
	case len(baseURL) >= 5 && baseURL[:5] == "https":
		return "wss" + baseURL[5:]
	case len(baseURL) >= 4 && baseURL[:4] == "http":
		return "ws" + baseURL[4:]
	default:
		return baseURL
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("fetch: building request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("fetch: encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, jsonReader(raw))
	if err != nil {
		return fmt.Errorf("fetch: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.New(apperr.KindSoftDependency, "fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apperr.New(apperr.KindSoftDependency, "fetch", fmt.Errorf("fetch returned status %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.New(apperr.KindSoftDependency, "fetch", fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
