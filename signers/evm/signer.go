// Package evm implements a wallet signer for EVM-compatible chains, signing
// EIP-3009 transfer authorizations with EIP-712 typed data.
package evm

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	x402a2a "github.com/mark3labs/x402-a2a-go"
)

// Signer implements the x402a2a.Signer interface for EVM-compatible chains.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	network    string
	chainID    *big.Int
	tokens     []x402a2a.TokenConfig
	priority   int
	maxAmount  *big.Int
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new EVM signer with the given options. A private key
// source (WithPrivateKey, WithKeystore, or WithMnemonic), a network, and at
// least one token are required.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.privateKey == nil {
		return nil, x402a2a.ErrInvalidKey
	}
	if s.network == "" {
		return nil, x402a2a.ErrInvalidNetwork
	}
	if len(s.tokens) == 0 {
		return nil, x402a2a.ErrNoTokens
	}

	s.address = crypto.PubkeyToAddress(s.privateKey.PublicKey)
	s.chainID = x402a2a.NetworkChainID(s.network)

	return s, nil
}

// WithPrivateKey sets the private key from a hex string.
func WithPrivateKey(hexKey string) SignerOption {
	return func(s *Signer) error {
		hexKey = strings.TrimPrefix(hexKey, "0x")

		privateKey, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return x402a2a.ErrInvalidKey
		}

		s.privateKey = privateKey
		return nil
	}
}

// WithNetwork sets the blockchain network.
func WithNetwork(network string) SignerOption {
	return func(s *Signer) error {
		s.network = network
		return nil
	}
}

// WithToken adds a token configuration.
func WithToken(address, symbol string, decimals int) SignerOption {
	return WithTokenPriority(address, symbol, decimals, 0)
}

// WithTokenPriority adds a token configuration with a priority. Lower is
// preferred.
func WithTokenPriority(address, symbol string, decimals, priority int) SignerOption {
	return func(s *Signer) error {
		s.tokens = append(s.tokens, x402a2a.TokenConfig{
			Address:  address,
			Symbol:   symbol,
			Decimals: decimals,
			Priority: priority,
		})
		return nil
	}
}

// WithPriority sets the signer priority. Lower is preferred.
func WithPriority(priority int) SignerOption {
	return func(s *Signer) error {
		s.priority = priority
		return nil
	}
}

// WithMaxAmountPerCall sets the per-call spending limit in atomic units.
func WithMaxAmountPerCall(amount string) SignerOption {
	return func(s *Signer) error {
		maxAmount, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return x402a2a.ErrInvalidAmount
		}
		s.maxAmount = maxAmount
		return nil
	}
}

// Network implements x402a2a.Signer.
func (s *Signer) Network() string {
	return s.network
}

// Scheme implements x402a2a.Signer.
func (s *Signer) Scheme() string {
	return "exact"
}

// CanSign implements x402a2a.Signer.
func (s *Signer) CanSign(requirement *x402a2a.PaymentRequirement) bool {
	if requirement.Network != s.network {
		return false
	}
	if requirement.Scheme != "exact" {
		return false
	}

	for _, token := range s.tokens {
		if strings.EqualFold(token.Address, requirement.Asset) {
			return true
		}
	}
	return false
}

// Sign implements x402a2a.Signer.
func (s *Signer) Sign(requirement *x402a2a.PaymentRequirement) (*x402a2a.PaymentPayload, error) {
	if !s.CanSign(requirement) {
		return nil, x402a2a.ErrNoValidSigner
	}

	amount := new(big.Int)
	if _, ok := amount.SetString(requirement.MaxAmountRequired, 10); !ok {
		return nil, x402a2a.ErrInvalidAmount
	}

	if s.maxAmount != nil && amount.Cmp(s.maxAmount) > 0 {
		return nil, x402a2a.ErrAmountExceeded
	}

	var tokenAddress common.Address
	for _, token := range s.tokens {
		if strings.EqualFold(token.Address, requirement.Asset) {
			tokenAddress = common.HexToAddress(token.Address)
			break
		}
	}

	auth, err := NewEIP3009Authorization(
		s.address,
		common.HexToAddress(requirement.PayTo),
		amount,
		requirement.MaxTimeoutSeconds,
	)
	if err != nil {
		return nil, err
	}

	name, version := domainParams(requirement)
	signature, err := SignTransferAuthorization(s.privateKey, tokenAddress, s.chainID, auth, name, version)
	if err != nil {
		return nil, err
	}

	return &x402a2a.PaymentPayload{
		X402Version: x402a2a.X402Version,
		Scheme:      "exact",
		Network:     s.network,
		Payload: x402a2a.EVMPayload{
			Signature: signature,
			Authorization: x402a2a.EVMAuthorization{
				From:        auth.From.Hex(),
				To:          auth.To.Hex(),
				Value:       auth.Value.String(),
				ValidAfter:  auth.ValidAfter.String(),
				ValidBefore: auth.ValidBefore.String(),
				Nonce:       auth.Nonce.Hex(),
			},
		},
	}, nil
}

// GetPriority implements x402a2a.Signer.
func (s *Signer) GetPriority() int {
	return s.priority
}

// GetTokens implements x402a2a.Signer.
func (s *Signer) GetTokens() []x402a2a.TokenConfig {
	return s.tokens
}

// GetMaxAmount implements x402a2a.Signer.
func (s *Signer) GetMaxAmount() *big.Int {
	return s.maxAmount
}

// Address returns the signer's Ethereum address.
func (s *Signer) Address() common.Address {
	return s.address
}

// domainParams resolves the EIP-3009 signing domain name and version. The
// requirement's extension map wins; the chain registry is the fallback.
func domainParams(requirement *x402a2a.PaymentRequirement) (string, string) {
	name, _ := requirement.Extra["name"].(string)
	version, _ := requirement.Extra["version"].(string)
	if name != "" && version != "" {
		return name, version
	}

	if chain, err := x402a2a.ChainByNetwork(requirement.Network); err == nil {
		if name == "" {
			name = chain.EIP3009Name
		}
		if version == "" {
			version = chain.EIP3009Version
		}
	}
	return name, version
}
