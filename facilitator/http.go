package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	x402a2a "github.com/mark3labs/x402-a2a-go"
)

// HTTPClient talks to a facilitator service over HTTP, posting verify and
// settle requests to the /verify and /settle endpoints.
type HTTPClient struct {
	// BaseURL is the facilitator endpoint without a trailing slash.
	BaseURL string

	// Client is the underlying HTTP client. Defaults to http.DefaultClient.
	Client *http.Client

	// Timeouts bound verify and settle calls.
	Timeouts x402a2a.TimeoutConfig

	// Authorization is an optional static Authorization header value.
	Authorization string

	// Logger receives request/response logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewHTTPClient creates an HTTPClient with default timeouts.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL:  baseURL,
		Client:   http.DefaultClient,
		Timeouts: x402a2a.DefaultTimeouts,
	}
}

// request is the body posted to /verify and /settle.
type request struct {
	X402Version         int                        `json:"x402Version"`
	PaymentPayload      x402a2a.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements x402a2a.PaymentRequirement `json:"paymentRequirements"`
}

// Verify implements Interface.
func (c *HTTPClient) Verify(ctx context.Context, payment x402a2a.PaymentPayload, requirement x402a2a.PaymentRequirement) (*x402a2a.VerifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeouts.VerifyTimeout)
	defer cancel()

	var verifyResp x402a2a.VerifyResponse
	if err := c.post(ctx, "/verify", payment, requirement, &verifyResp, x402a2a.ErrVerificationFailed); err != nil {
		return nil, err
	}

	c.logger().Debug("facilitator verify",
		"isValid", verifyResp.IsValid, "payer", verifyResp.Payer)
	return &verifyResp, nil
}

// Settle implements Interface.
func (c *HTTPClient) Settle(ctx context.Context, payment x402a2a.PaymentPayload, requirement x402a2a.PaymentRequirement) (*x402a2a.SettleResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeouts.SettleTimeout)
	defer cancel()

	var settleResp x402a2a.SettleResponse
	if err := c.post(ctx, "/settle", payment, requirement, &settleResp, x402a2a.ErrSettlementFailed); err != nil {
		return nil, err
	}

	c.logger().Debug("facilitator settle",
		"success", settleResp.Success, "transaction", settleResp.Transaction)
	return &settleResp, nil
}

// post sends one facilitator request and decodes the response into out.
func (c *HTTPClient) post(ctx context.Context, path string, payment x402a2a.PaymentPayload, requirement x402a2a.PaymentRequirement, out any, statusErr error) error {
	body := request{
		X402Version:         x402a2a.X402Version,
		PaymentPayload:      payment,
		PaymentRequirements: requirement,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Authorization != "" {
		httpReq.Header.Set("Authorization", c.Authorization)
	}

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", x402a2a.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", statusErr, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func (c *HTTPClient) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
