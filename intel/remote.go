package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes bounds how much of a collaborator response is read.
const maxResponseBytes = 8 << 20

// Client calls the remote summarization and speech services. Both are
// single-shot JSON request/response calls with no retries.
type Client struct {
	httpClient     *http.Client
	endpoint       string
	speechEndpoint string
	apiKey         string
}

// NewClient creates a client. An empty endpoint disables that call.
func NewClient(endpoint, speechEndpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		endpoint:       endpoint,
		speechEndpoint: speechEndpoint,
		apiKey:         apiKey,
	}
}

type textRequest struct {
	Text string `json:"text"`
}

// Analyze sends the transcript to the summarization service.
func (c *Client) Analyze(ctx context.Context, text string) (*Analysis, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("%w: no summarization endpoint configured", ErrUnavailable)
	}

	var analysis Analysis
	if err := c.post(ctx, c.endpoint, textRequest{Text: text}, &analysis); err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	if analysis.Alerts == nil {
		analysis.Alerts = []string{}
	}
	return &analysis, nil
}

// Synthesize sends text to the speech service.
func (c *Client) Synthesize(ctx context.Context, text string) (*Speech, error) {
	if c.speechEndpoint == "" {
		return nil, fmt.Errorf("%w: no speech endpoint configured", ErrUnavailable)
	}

	var speech Speech
	if err := c.post(ctx, c.speechEndpoint, textRequest{Text: text}, &speech); err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if speech.AudioDataURI == "" {
		return nil, fmt.Errorf("synthesize: %w: empty audio in response", ErrUnavailable)
	}
	return &speech, nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: parsing response: %v", ErrUnavailable, err)
	}
	return nil
}
