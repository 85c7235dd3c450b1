// Package facilitator defines the port to the third-party service that
// validates and settles signed payment authorizations, plus an HTTP client
// for real facilitator services and a mock for tests and demos.
package facilitator

import (
	"context"

	x402a2a "github.com/mark3labs/x402-a2a-go"
)

// Interface is the facilitator contract. Implementations must be safe to
// call repeatedly with the same arguments and must signal failures as
// errors, never as silent defaults.
type Interface interface {
	// Verify validates a payment authorization without executing it.
	Verify(ctx context.Context, payment x402a2a.PaymentPayload, requirement x402a2a.PaymentRequirement) (*x402a2a.VerifyResponse, error)

	// Settle executes a verified payment on the blockchain.
	Settle(ctx context.Context, payment x402a2a.PaymentPayload, requirement x402a2a.PaymentRequirement) (*x402a2a.SettleResponse, error)
}
