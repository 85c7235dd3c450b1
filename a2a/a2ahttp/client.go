package a2ahttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	x402a2a "github.com/mark3labs/x402-a2a-go"
	"github.com/mark3labs/x402-a2a-go/a2a"
	"github.com/mark3labs/x402-a2a-go/retry"
)

// Client posts tasks to a merchant agent. It requests payment extension
// activation on every exchange and retries transient transport failures.
type Client struct {
	// BaseURL is the agent endpoint without a trailing slash.
	BaseURL string

	// HTTPClient is the underlying HTTP client. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Retry configures transport retries. Defaults to retry.DefaultConfig.
	Retry retry.Config

	// Timeouts bound each request.
	Timeouts x402a2a.TimeoutConfig
}

// NewClient creates a task client for the given agent endpoint.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		Retry:    retry.DefaultConfig,
		Timeouts: x402a2a.DefaultTimeouts,
	}
}

// statusError marks a retryable server-side HTTP failure.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// transient reports whether an error is worth retrying: network errors and
// 5xx responses, never protocol-level failures.
func transient(err error) bool {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Send implements the client flow's task sender.
func (c *Client) Send(ctx context.Context, task *a2a.Task) (*a2a.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeouts.RequestTimeout)
	defer cancel()

	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	return retry.WithRetry(ctx, c.Retry, transient, func() (*a2a.Task, error) {
		return c.post(ctx, data)
	})
}

// Card fetches the agent's card.
func (c *Client) Card(ctx context.Context) (*a2a.AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/.well-known/agent.json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	var card a2a.AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	return &card, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*a2a.Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/a2a/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(a2a.ExtensionHeader, a2a.ExtensionURI)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	var result a2a.Task
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode task response: %w", err)
	}
	return &result, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
