package x402a2a

import (
	"fmt"
	"math/big"
)

// ChainConfig contains chain-specific configuration for USDC payments.
// USDC addresses and EIP-3009 domain parameters were verified against
// Circle's published deployments.
type ChainConfig struct {
	// NetworkID is the x402 network identifier (e.g., "base", "base-sepolia").
	NetworkID string

	// ChainID is the EVM chain id used in the EIP-712 signing domain.
	ChainID int64

	// USDCAddress is the official Circle USDC contract address.
	USDCAddress string

	// Decimals is the number of decimal places for USDC (always 6).
	Decimals uint8

	// EIP3009Name is the EIP-3009 domain parameter "name".
	EIP3009Name string

	// EIP3009Version is the EIP-3009 domain parameter "version".
	EIP3009Version string
}

// Mainnet chain configurations.
var (
	// BaseMainnet is the configuration for Base mainnet.
	BaseMainnet = ChainConfig{
		NetworkID:      "base",
		ChainID:        8453,
		USDCAddress:    "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}

	// EthereumMainnet is the configuration for Ethereum mainnet.
	EthereumMainnet = ChainConfig{
		NetworkID:      "ethereum",
		ChainID:        1,
		USDCAddress:    "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Decimals:       6,
		EIP3009Name:    "USD Coin",
		EIP3009Version: "2",
	}
)

// Testnet chain configurations.
var (
	// BaseSepolia is the configuration for Base Sepolia testnet.
	BaseSepolia = ChainConfig{
		NetworkID:      "base-sepolia",
		ChainID:        84532,
		USDCAddress:    "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}

	// EthereumSepolia is the configuration for Ethereum Sepolia testnet.
	EthereumSepolia = ChainConfig{
		NetworkID:      "sepolia",
		ChainID:        11155111,
		USDCAddress:    "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		Decimals:       6,
		EIP3009Name:    "USDC",
		EIP3009Version: "2",
	}
)

// knownChains indexes the chain configurations by network id.
var knownChains = map[string]ChainConfig{
	BaseMainnet.NetworkID:     BaseMainnet,
	EthereumMainnet.NetworkID: EthereumMainnet,
	BaseSepolia.NetworkID:     BaseSepolia,
	EthereumSepolia.NetworkID: EthereumSepolia,
}

// ChainByNetwork returns the chain configuration for a network id.
func ChainByNetwork(network string) (ChainConfig, error) {
	chain, ok := knownChains[network]
	if !ok {
		return ChainConfig{}, fmt.Errorf("%w: %s", ErrInvalidNetwork, network)
	}
	return chain, nil
}

// NetworkChainID returns the EVM chain id for a network, or 0 if unknown.
func NetworkChainID(network string) *big.Int {
	if chain, ok := knownChains[network]; ok {
		return big.NewInt(chain.ChainID)
	}
	return big.NewInt(0)
}

// USDCRequirementConfig configures NewUSDCRequirement.
type USDCRequirementConfig struct {
	// Chain is the chain configuration with USDC details (required).
	Chain ChainConfig

	// AtomicAmount is the amount in atomic units as an integer string
	// (required; USDC has 6 decimals, so "5000000" is 5 USDC).
	AtomicAmount string

	// PayTo is the merchant's recipient address (required).
	PayTo string

	// Resource identifies what is being sold.
	Resource string

	// Description is a human-readable description of the purchase.
	Description string

	// MaxTimeoutSeconds is the quote validity window (defaults to 300).
	MaxTimeoutSeconds int

	// MimeType is the response MIME type (defaults to "application/json").
	MimeType string
}

// NewUSDCRequirement builds an "exact"-scheme PaymentRequirement for USDC on
// the configured chain. The EIP-3009 domain parameters and token decimals
// are placed in Extra so wallet signers can build the signing domain without
// a chain registry of their own.
func NewUSDCRequirement(cfg USDCRequirementConfig) (PaymentRequirement, error) {
	if cfg.Chain.NetworkID == "" {
		return PaymentRequirement{}, fmt.Errorf("%w: chain config required", ErrInvalidNetwork)
	}
	if cfg.PayTo == "" {
		return PaymentRequirement{}, fmt.Errorf("recipient address required")
	}

	amount := new(big.Int)
	if _, ok := amount.SetString(cfg.AtomicAmount, 10); !ok || amount.Sign() <= 0 {
		return PaymentRequirement{}, fmt.Errorf("%w: %q", ErrInvalidAmount, cfg.AtomicAmount)
	}

	timeout := cfg.MaxTimeoutSeconds
	if timeout == 0 {
		timeout = 300
	}
	mimeType := cfg.MimeType
	if mimeType == "" {
		mimeType = "application/json"
	}

	return PaymentRequirement{
		Scheme:            "exact",
		Network:           cfg.Chain.NetworkID,
		MaxAmountRequired: amount.String(),
		Asset:             cfg.Chain.USDCAddress,
		PayTo:             cfg.PayTo,
		Resource:          cfg.Resource,
		Description:       cfg.Description,
		MimeType:          mimeType,
		MaxTimeoutSeconds: timeout,
		Extra: map[string]any{
			"name":     cfg.Chain.EIP3009Name,
			"version":  cfg.Chain.EIP3009Version,
			"decimals": int(cfg.Chain.Decimals),
		},
	}, nil
}
