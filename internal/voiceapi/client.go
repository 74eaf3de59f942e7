// Package voiceapi is a thin client for the external voice platform's REST
// API. It is used by the post-call enrichment worker to fetch call details
// that did not arrive over the webhook.
package voiceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicedesk_backend/platform/config"
	"voicedesk_backend/platform/logger"
)

// Client calls the voice platform. A nil Client is valid and means the
// integration is not configured; every method returns ErrNotConfigured.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// ErrNotConfigured is returned when no voice API base URL is set.
var ErrNotConfigured = fmt.Errorf("voice api not configured")

// CallDetails is the subset of the provider's call object the enrichment
// worker cares about.
type CallDetails struct {
	ID          string   `json:"id"`
	Cost        *float64 `json:"cost,omitempty"`
	EndedReason string   `json:"endedReason,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// NewClient creates a voice API client, or nil when the base URL is unset.
func NewClient(cfg config.VoiceAPIConfig, log *logger.Logger) *Client {
	if cfg.GetVoiceAPIBaseURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetVoiceAPIBaseURL(), "/"),
		apiKey:  cfg.GetVoiceAPIKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// GetCall fetches the provider's record of a call by its provider id.
func (c *Client) GetCall(ctx context.Context, vapiCallID string) (CallDetails, error) {
	if c == nil {
		return CallDetails{}, ErrNotConfigured
	}

	url := fmt.Sprintf("%s/call/%s", c.baseURL, vapiCallID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CallDetails{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return CallDetails{}, fmt.Errorf("voice api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return CallDetails{}, fmt.Errorf("voice api returned %d: %s", resp.StatusCode, string(body))
	}

	var details CallDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return CallDetails{}, fmt.Errorf("decode voice api response: %w", err)
	}
	return details, nil
}
