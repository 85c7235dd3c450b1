package x402a2a

import (
	"fmt"
	"time"
)

// TimeoutConfig holds the timeouts applied to facilitator operations.
type TimeoutConfig struct {
	// VerifyTimeout bounds a single verify call.
	VerifyTimeout time.Duration

	// SettleTimeout bounds a single settle call. Longer than verify because
	// settlement waits on a blockchain transaction.
	SettleTimeout time.Duration

	// RequestTimeout bounds a full task round trip on the client side.
	RequestTimeout time.Duration
}

// DefaultTimeouts provides sensible defaults for facilitator operations.
var DefaultTimeouts = TimeoutConfig{
	VerifyTimeout:  5 * time.Second,
	SettleTimeout:  60 * time.Second,
	RequestTimeout: 120 * time.Second,
}

// Validate checks that all timeouts are positive.
func (c TimeoutConfig) Validate() error {
	if c.VerifyTimeout <= 0 {
		return fmt.Errorf("verify timeout must be positive, got %v", c.VerifyTimeout)
	}
	if c.SettleTimeout <= 0 {
		return fmt.Errorf("settle timeout must be positive, got %v", c.SettleTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeout)
	}
	return nil
}
