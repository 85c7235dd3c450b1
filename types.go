// Package x402a2a implements the x402 payment negotiation protocol as an
// overlay on A2A-style task transports. A merchant quotes payment
// requirements inside a task's status metadata, the caller signs an
// authorization with a wallet, and the merchant verifies and settles it with
// a facilitator service, recording every settlement attempt as a receipt.
package x402a2a

import "math/big"

// X402Version is the protocol version carried on every payment envelope.
const X402Version = 1

// PaymentStatus tracks one payment negotiation through its lifecycle.
// The values are the kebab-case wire strings stored under the
// "x402.payment.status" metadata key.
type PaymentStatus string

const (
	// StatusPaymentRequired means the merchant has quoted payment options
	// and is waiting for the caller to submit a signed authorization.
	StatusPaymentRequired PaymentStatus = "payment-required"

	// StatusPaymentSubmitted means the caller has attached a signed payload
	// to a resubmitted task.
	StatusPaymentSubmitted PaymentStatus = "payment-submitted"

	// StatusPaymentVerified means the facilitator validated the authorization
	// but settlement has not happened yet.
	StatusPaymentVerified PaymentStatus = "payment-verified"

	// StatusPaymentCompleted means settlement succeeded.
	StatusPaymentCompleted PaymentStatus = "payment-completed"

	// StatusPaymentFailed means the negotiation ended without a successful
	// settlement.
	StatusPaymentFailed PaymentStatus = "payment-failed"
)

// Valid reports whether s is one of the defined negotiation states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPaymentRequired, StatusPaymentSubmitted, StatusPaymentVerified,
		StatusPaymentCompleted, StatusPaymentFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends the negotiation.
func (s PaymentStatus) Terminal() bool {
	return s == StatusPaymentCompleted || s == StatusPaymentFailed
}

// PaymentRequirement represents a single payment option quoted by a merchant.
// A requirement is immutable once quoted.
type PaymentRequirement struct {
	// Scheme is the payment scheme identifier (e.g., "exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier (e.g., "base-sepolia").
	Network string `json:"network"`

	// MaxAmountRequired is the payment amount in atomic units (e.g., wei).
	MaxAmountRequired string `json:"maxAmountRequired"`

	// Asset is the token contract address on the quoted network.
	Asset string `json:"asset"`

	// PayTo is the merchant's recipient address.
	PayTo string `json:"payTo"`

	// Resource identifies what is being sold.
	Resource string `json:"resource"`

	// Description is a human-readable description of the purchase.
	Description string `json:"description"`

	// MimeType is the content type of the purchased resource.
	MimeType string `json:"mimeType"`

	// MaxTimeoutSeconds is the validity window for the quote. Zero or
	// negative means the quote never expires.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Extra carries scheme-specific data such as the EIP-3009 domain name,
	// token decimals, and product metadata.
	Extra map[string]any `json:"extra,omitempty"`

	// OutputSchema optionally describes the machine-checkable shape of the
	// result the caller will receive after payment.
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
}

// PaymentRequiredResponse is the envelope stored under the
// "x402.payment.required" metadata key when a merchant quotes offers.
type PaymentRequiredResponse struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Accepts lists the payment options in merchant preference order.
	Accepts []PaymentRequirement `json:"accepts"`

	// Error is the human-readable reason payment is required.
	Error string `json:"error,omitempty"`
}

// PaymentPayload is a caller-signed authorization matching one quoted
// requirement. Immutable once produced.
type PaymentPayload struct {
	// X402Version is the protocol version (currently 1).
	X402Version int `json:"x402Version"`

	// Scheme is the payment scheme identifier (e.g., "exact").
	Scheme string `json:"scheme"`

	// Network is the blockchain network identifier.
	Network string `json:"network"`

	// Payload is the scheme-specific signed payment data.
	// For the "exact" scheme on EVM chains this is an EVMPayload.
	Payload any `json:"payload"`
}

// EVMPayload represents an EVM payment with an EIP-3009 authorization.
type EVMPayload struct {
	// Signature is the hex-encoded ECDSA signature over the EIP-712 digest.
	Signature string `json:"signature"`

	// Authorization contains the EIP-3009 transferWithAuthorization fields.
	Authorization EVMAuthorization `json:"authorization"`
}

// EVMAuthorization represents EIP-3009 transferWithAuthorization parameters.
type EVMAuthorization struct {
	// From is the payer's address.
	From string `json:"from"`

	// To is the recipient's address.
	To string `json:"to"`

	// Value is the payment amount in atomic units (wei).
	Value string `json:"value"`

	// ValidAfter is the unix timestamp after which the authorization is valid.
	ValidAfter string `json:"validAfter"`

	// ValidBefore is the unix timestamp before which the authorization is valid.
	ValidBefore string `json:"validBefore"`

	// Nonce is a unique 32-byte hex string preventing replay.
	Nonce string `json:"nonce"`
}

// VerifyResponse is the facilitator's answer to a verification request.
type VerifyResponse struct {
	// IsValid reports whether the authorization is acceptable.
	IsValid bool `json:"isValid"`

	// InvalidReason explains a rejection.
	InvalidReason string `json:"invalidReason,omitempty"`

	// Payer is the address that signed the authorization.
	Payer string `json:"payer,omitempty"`
}

// SettleResponse records the outcome of one settlement attempt. Settle
// responses appended to a task's receipt history are never mutated.
type SettleResponse struct {
	// Success indicates whether the payment was settled on-chain.
	Success bool `json:"success"`

	// Network is the blockchain network where settlement was attempted.
	Network string `json:"network,omitempty"`

	// Transaction is the blockchain transaction hash on success.
	Transaction string `json:"transaction,omitempty"`

	// ErrorReason explains a failed settlement.
	ErrorReason string `json:"errorReason,omitempty"`

	// Payer is the address that made the payment, when known.
	Payer string `json:"payer,omitempty"`
}

// TokenConfig represents a token a wallet signer can spend.
type TokenConfig struct {
	// Address is the token contract address.
	Address string

	// Symbol is the token symbol (e.g., "USDC").
	Symbol string

	// Decimals is the number of decimal places for the token.
	Decimals int

	// Priority orders tokens within a signer. Lower is preferred.
	Priority int

	// Name is an optional human-readable token name.
	Name string
}

// AmountToBigInt converts a decimal amount string to *big.Int in atomic
// units. For example, "1.5" with 6 decimals becomes 1500000.
func AmountToBigInt(amount string, decimals int) (*big.Int, error) {
	value := new(big.Float)
	if _, ok := value.SetString(amount); !ok {
		return nil, ErrInvalidAmount
	}

	multiplier := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value.Mul(value, multiplier)

	result, accuracy := value.Int(nil)
	if accuracy != big.Exact {
		return nil, ErrInvalidAmount
	}
	return result, nil
}

// BigIntToAmount converts a *big.Int in atomic units to a decimal string.
// For example, 1500000 with 6 decimals becomes "1.500000".
func BigIntToAmount(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}

	f := new(big.Float).SetInt(value)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Quo(f, divisor)

	return f.Text('f', decimals)
}
