package x402a2a

import "math/big"

// Signer represents a wallet capable of producing signed payment payloads.
// Implementations handle chain-specific signing; the EVM implementation in
// signers/evm signs EIP-3009 transfer authorizations.
type Signer interface {
	// Network returns the blockchain network identifier (e.g., "base-sepolia").
	Network() string

	// Scheme returns the payment scheme identifier (currently "exact").
	Scheme() string

	// CanSign checks if this signer can satisfy the given payment requirement.
	CanSign(requirement *PaymentRequirement) bool

	// Sign creates a signed payment payload for the given requirement.
	// The payload's scheme and network match the requirement, and the
	// authorized value never exceeds the requirement's maximum.
	Sign(requirement *PaymentRequirement) (*PaymentPayload, error)

	// GetPriority returns the signer's priority level.
	// Lower numbers indicate higher priority.
	GetPriority() int

	// GetTokens returns the list of tokens supported by this signer.
	GetTokens() []TokenConfig

	// GetMaxAmount returns the per-call spending limit, or nil if unset.
	GetMaxAmount() *big.Int
}
