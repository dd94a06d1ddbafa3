// Package scribe is a thin client for the Scribe transcription service, a
// soft dependency specified only by its HTTP contract: submit_transcription
// and get_transcription.
package scribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/autosint/engine/pkg/apperr"
)

// Client wraps Scribe's REST surface.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client targeting baseURL (external_modules.scribe_base_url).
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 15 * time.Second}}
}

// TranscribeRequest is the body of POST /transcribe.
type TranscribeRequest struct {
	MediaURL string `json:"media_url"`
	Platform string `json:"platform,omitempty"`
}

// SubmitTranscription backs submit_transcription, returning Scribe's
// job_id for later long-polling.
func (c *Client) SubmitTranscription(ctx context.Context, req TranscribeRequest) (jobID string, err error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("scribe: encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("scribe: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", apperr.New(apperr.KindSoftDependency, "scribe", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", apperr.New(apperr.KindSoftDependency, "scribe", fmt.Errorf("scribe returned status %d", resp.StatusCode))
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.New(apperr.KindSoftDependency, "scribe", fmt.Errorf("decoding response: %w", err))
	}
	return out.JobID, nil
}

// TranscriptionResult is the terminal payload from GET /transcribe/{id}.
type TranscriptionResult struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Text   string `json:"text"`
}

// GetTranscription backs get_transcription, long-polling Scribe for up to
// timeout for a terminal result.
func (c *Client) GetTranscription(ctx context.Context, jobID string, timeout time.Duration) (*TranscriptionResult, error) {
	url := fmt.Sprintf("%s/transcribe/%s?block=true&timeout=%d", c.baseURL, jobID, int(timeout.Seconds()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("scribe: building request: %w", err)
	}

	httpClient := &http.Client{Timeout: timeout + 5*time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.KindSoftDependency, "scribe", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, apperr.New(apperr.KindSoftDependency, "scribe", fmt.Errorf("scribe returned status %d", resp.StatusCode))
	}

	var out TranscriptionResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.New(apperr.KindSoftDependency, "scribe", fmt.Errorf("decoding response: %w", err))
	}
	return &out, nil
}

// CancelTranscription backs the DELETE /transcribe/{id} contract entry.
func (c *Client) CancelTranscription(ctx context.Context, jobID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/transcribe/"+jobID, nil)
	if err != nil {
		return fmt.Errorf("scribe: building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.New(apperr.KindSoftDependency, "scribe", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apperr.New(apperr.KindSoftDependency, "scribe", fmt.Errorf("scribe returned status %d", resp.StatusCode))
	}
	return nil
}
