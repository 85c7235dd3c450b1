package facilitator

import (
	"context"
	"fmt"
	"sync"

	x402a2a "github.com/mark3labs/x402-a2a-go"
)

// Mock is a facilitator that bypasses real network calls. It extracts the
// payer from the submitted EVM authorization and answers according to its
// configuration. Useful for demos and tests; not for production.
type Mock struct {
	// Valid controls whether Verify approves authorizations.
	Valid bool

	// Settled controls whether Settle reports success.
	Settled bool

	// Transaction is the hash reported on successful settlement.
	Transaction string

	mu          sync.Mutex
	verifyCalls int
	settleCalls int
}

// NewMock creates a mock facilitator that approves and settles everything.
func NewMock() *Mock {
	return &Mock{
		Valid:       true,
		Settled:     true,
		Transaction: "0xmock1234567890abcdef1234567890abcdef1234567890abcdef1234567890",
	}
}

// Verify implements Interface.
func (m *Mock) Verify(_ context.Context, payment x402a2a.PaymentPayload, _ x402a2a.PaymentRequirement) (*x402a2a.VerifyResponse, error) {
	m.mu.Lock()
	m.verifyCalls++
	m.mu.Unlock()

	payer, err := payerOf(payment)
	if err != nil {
		return nil, err
	}

	if !m.Valid {
		return &x402a2a.VerifyResponse{
			IsValid:       false,
			Payer:         payer,
			InvalidReason: "mock_invalid_payload",
		}, nil
	}
	return &x402a2a.VerifyResponse{IsValid: true, Payer: payer}, nil
}

// Settle implements Interface.
func (m *Mock) Settle(_ context.Context, payment x402a2a.PaymentPayload, requirement x402a2a.PaymentRequirement) (*x402a2a.SettleResponse, error) {
	m.mu.Lock()
	m.settleCalls++
	m.mu.Unlock()

	if !m.Settled {
		return &x402a2a.SettleResponse{
			Success:     false,
			Network:     requirement.Network,
			ErrorReason: "mock_settlement_failed",
		}, nil
	}

	payer, _ := payerOf(payment)
	return &x402a2a.SettleResponse{
		Success:     true,
		Network:     requirement.Network,
		Transaction: m.Transaction,
		Payer:       payer,
	}, nil
}

// VerifyCalls returns how many times Verify was invoked.
func (m *Mock) VerifyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyCalls
}

// SettleCalls returns how many times Settle was invoked.
func (m *Mock) SettleCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settleCalls
}

// payerOf extracts the payer address from an exact-scheme payload, whether
// it arrives typed or as a decoded JSON map.
func payerOf(payment x402a2a.PaymentPayload) (string, error) {
	switch p := payment.Payload.(type) {
	case x402a2a.EVMPayload:
		return p.Authorization.From, nil
	case *x402a2a.EVMPayload:
		return p.Authorization.From, nil
	case map[string]any:
		if auth, ok := p["authorization"].(map[string]any); ok {
			if from, ok := auth["from"].(string); ok {
				return from, nil
			}
		}
		return "", fmt.Errorf("payload missing authorization.from")
	default:
		return "", fmt.Errorf("unsupported payload type %T", payment.Payload)
	}
}
