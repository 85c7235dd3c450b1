package x402a2a

import (
	"math/big"
	"sort"
	"strings"
)

// OfferSelector picks an offer from a quoted accepts list and produces a
// signed payment for it.
type OfferSelector interface {
	// SelectAndSign walks the offers in quote order, chooses the best signer
	// able to satisfy one, and returns the signed payload together with the
	// offer it satisfies.
	SelectAndSign(offers []PaymentRequirement, signers []Signer) (*PaymentPayload, *PaymentRequirement, error)
}

// DefaultOfferSelector implements the standard selection algorithm:
//  1. Offers are tried strictly in quote order — the merchant's list order
//     encodes its preference, so the first signable offer wins.
//  2. Among signers able to satisfy an offer, lower signer priority wins,
//     then lower token priority, then configuration order.
type DefaultOfferSelector struct{}

// NewDefaultOfferSelector creates a DefaultOfferSelector.
func NewDefaultOfferSelector() *DefaultOfferSelector {
	return &DefaultOfferSelector{}
}

// SelectAndSign implements OfferSelector.
func (s *DefaultOfferSelector) SelectAndSign(offers []PaymentRequirement, signers []Signer) (*PaymentPayload, *PaymentRequirement, error) {
	if len(offers) == 0 {
		return nil, nil, ErrNoOffers
	}
	if len(signers) == 0 {
		return nil, nil, NewPaymentError(CodeInvalidSignature, "no signers configured", ErrNoValidSigner)
	}

	for i := range offers {
		offer := &offers[i]

		requiredAmount := new(big.Int)
		if _, ok := requiredAmount.SetString(offer.MaxAmountRequired, 10); !ok {
			continue
		}

		candidates := candidatesFor(offer, requiredAmount, signers)
		if len(candidates) == 0 {
			continue
		}

		sort.SliceStable(candidates, func(a, b int) bool {
			if candidates[a].signerPriority != candidates[b].signerPriority {
				return candidates[a].signerPriority < candidates[b].signerPriority
			}
			return candidates[a].tokenPriority < candidates[b].tokenPriority
		})

		payment, err := candidates[0].signer.Sign(offer)
		if err != nil {
			return nil, nil, NewPaymentError(CodeInvalidSignature, "failed to sign payment", err)
		}
		return payment, offer, nil
	}

	return nil, nil, NewPaymentError(CodeInvalidSignature, "no signer can satisfy any offer", ErrNoValidSigner).
		WithDetails("offers", len(offers))
}

// candidatesFor collects the signers able to satisfy an offer.
func candidatesFor(offer *PaymentRequirement, requiredAmount *big.Int, signers []Signer) []signerCandidate {
	var candidates []signerCandidate
	for _, signer := range signers {
		if !signer.CanSign(offer) {
			continue
		}

		maxAmount := signer.GetMaxAmount()
		if maxAmount != nil && requiredAmount.Cmp(maxAmount) > 0 {
			continue
		}

		tokenPriority := 0
		for _, token := range signer.GetTokens() {
			if strings.EqualFold(token.Address, offer.Asset) {
				tokenPriority = token.Priority
				break
			}
		}

		candidates = append(candidates, signerCandidate{
			signer:         signer,
			signerPriority: signer.GetPriority(),
			tokenPriority:  tokenPriority,
		})
	}
	return candidates
}

// signerCandidate is a signer that can satisfy a payment offer.
type signerCandidate struct {
	signer         Signer
	signerPriority int
	tokenPriority  int
}
