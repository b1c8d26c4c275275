// Package planner is the HTTP client for the external planning
// service. It implements the pipeline's Notifier, PromptGate and
// Listener contracts: telling the planner that beats are ready,
// probing whether derived image prompts exist, and running the
// out-of-band readiness listener.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/renderpilot/renderpilot/pkg/infra/logger"
	"github.com/renderpilot/renderpilot/pkg/pipeline"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8787"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type beatsReadyRequest struct {
	StoryID       string `json:"story_id"`
	EpisodeNumber int    `json:"episode_number"`
	TotalBeats    int    `json:"total_beats"`
}

type beatsReadyResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

type promptsReadyResponse struct {
	Ready       bool `json:"ready"`
	PromptCount int  `json:"prompt_count,omitempty"`
}

// NotifyBeatsReady tells the planner that a session's beats are
// complete so it can derive image prompts. The pipeline treats a
// failure here as non-critical.
func (c *Client) NotifyBeatsReady(ctx context.Context, session pipeline.Session) error {
	body, err := json.Marshal(beatsReadyRequest{
		StoryID:       session.StoryID,
		EpisodeNumber: session.EpisodeNumber,
		TotalBeats:    session.TotalBeats,
	})
	if err != nil {
		return fmt.Errorf("marshal beats-ready request: %w", err)
	}

	url := fmt.Sprintf("%s/api/sessions/%s/beats-ready", c.baseURL, session.SessionTimestamp)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build beats-ready request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify beats ready: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notify beats ready: status %d: %s", resp.StatusCode, string(data))
	}

	var ack beatsReadyResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("decode beats-ready response: %w", err)
	}
	if !ack.Acknowledged {
		return fmt.Errorf("planner did not acknowledge beats-ready")
	}
	return nil
}

// PromptsReady probes whether derived prompts exist for the session.
// It is safe to call repeatedly; transient errors are reported as
// false so a wait loop keeps going instead of aborting.
func (c *Client) PromptsReady(ctx context.Context, sessionTimestamp string) bool {
	url := fmt.Sprintf("%s/api/sessions/%s/prompts/ready", c.baseURL, sessionTimestamp)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug("prompt readiness probe failed", "session", sessionTimestamp, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var status promptsReadyResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		logger.Debug("prompt readiness decode failed", "session", sessionTimestamp, "error", err)
		return false
	}
	return status.Ready
}

// TriggerGeneration asks the planner to kick off image generation for
// the session's derived prompts. The pipeline invokes this at most
// once per run, through the caller-supplied trigger closure.
func (c *Client) TriggerGeneration(ctx context.Context, sessionTimestamp string) error {
	url := fmt.Sprintf("%s/api/sessions/%s/generate", c.baseURL, sessionTimestamp)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("build generate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trigger generation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trigger generation: status %d: %s", resp.StatusCode, string(data))
	}
	return nil
}

var (
	_ pipeline.Notifier   = (*Client)(nil)
	_ pipeline.PromptGate = (*Client)(nil)
)
