package x402a2a

import (
	"errors"
	"fmt"
)

// Standard error definitions for the payment negotiation overlay.

var (
	// ErrPaymentRequired indicates that payment is required for the task.
	ErrPaymentRequired = errors.New("payment required")

	// ErrInvalidAmount indicates a malformed or non-positive amount string.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidKey indicates a malformed signing key.
	ErrInvalidKey = errors.New("invalid private key")

	// ErrInvalidKeystore indicates an unreadable or undecryptable keystore file.
	ErrInvalidKeystore = errors.New("invalid keystore")

	// ErrInvalidMnemonic indicates a BIP39 mnemonic that fails validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic")

	// ErrInvalidNetwork indicates an empty or unrecognized network identifier.
	ErrInvalidNetwork = errors.New("invalid network")

	// ErrNoTokens indicates a signer configured without any spendable token.
	ErrNoTokens = errors.New("no tokens configured")

	// ErrNoValidSigner indicates no configured signer can satisfy an offer.
	ErrNoValidSigner = errors.New("no valid signer for requirements")

	// ErrAmountExceeded indicates an offer above a signer's per-call limit.
	ErrAmountExceeded = errors.New("amount exceeds signer limit")

	// ErrNoOffers indicates a payment-required response with an empty
	// accepts list.
	ErrNoOffers = errors.New("no payment offers provided")

	// ErrFacilitatorUnavailable indicates the facilitator could not be reached.
	ErrFacilitatorUnavailable = errors.New("facilitator unavailable")

	// ErrVerificationFailed indicates the facilitator rejected a verification
	// request at the transport level.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrSettlementFailed indicates the facilitator rejected a settlement
	// request at the transport level.
	ErrSettlementFailed = errors.New("settlement failed")

	// ErrPaymentDeclined indicates the caller declined to approve a payment.
	ErrPaymentDeclined = errors.New("payment declined")
)

// ErrorCode identifies why a payment negotiation failed. Codes are written
// to the "x402.payment.error" metadata key on terminal failures.
type ErrorCode string

const (
	// CodeMissingPayload: a submission carried no payment payload.
	CodeMissingPayload ErrorCode = "MISSING_PAYLOAD"

	// CodeMissingRequirements: no stored quote matches the submission's task id.
	CodeMissingRequirements ErrorCode = "MISSING_REQUIREMENTS"

	// CodeNoMatchingRequirement: no stored offer matches the payload's
	// scheme and network.
	CodeNoMatchingRequirement ErrorCode = "NO_MATCHING_REQUIREMENT"

	// CodeExpiredPayment: the matched offer's validity window has elapsed.
	CodeExpiredPayment ErrorCode = "EXPIRED_PAYMENT"

	// CodeInvalidSignature: the facilitator rejected the authorization, or
	// could not be reached to verify it.
	CodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// CodeSettlementFailed: settlement was attempted and did not succeed.
	CodeSettlementFailed ErrorCode = "SETTLEMENT_FAILED"
)

// PaymentError is a structured negotiation failure carrying an ErrorCode
// and optional key-value details.
type PaymentError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]any
}

// NewPaymentError creates a PaymentError wrapping an underlying cause.
func NewPaymentError(code ErrorCode, message string, err error) *PaymentError {
	return &PaymentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails attaches a key-value detail and returns the error for chaining.
func (e *PaymentError) WithDetails(key string, value any) *PaymentError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Error implements the error interface.
func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PaymentError) Unwrap() error {
	return e.Err
}
