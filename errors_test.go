package x402a2a

import (
	"errors"
	"strings"
	"testing"
)

func TestPaymentError(t *testing.T) {
	t.Run("formats code and message", func(t *testing.T) {
		err := NewPaymentError(CodeMissingPayload, "submission carries no payment payload", nil)
		if !strings.Contains(err.Error(), "MISSING_PAYLOAD") {
			t.Errorf("error string %q missing code", err.Error())
		}
	})

	t.Run("wraps cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewPaymentError(CodeInvalidSignature, "verification call failed", cause)
		if !errors.Is(err, cause) {
			t.Error("expected errors.Is to find the cause")
		}
		if !strings.Contains(err.Error(), "boom") {
			t.Errorf("error string %q missing cause", err.Error())
		}
	})

	t.Run("details chain", func(t *testing.T) {
		err := NewPaymentError(CodeNoMatchingRequirement, "no match", nil).
			WithDetails("scheme", "exact").
			WithDetails("network", "base")
		if err.Details["scheme"] != "exact" || err.Details["network"] != "base" {
			t.Errorf("details not recorded: %+v", err.Details)
		}
	})
}

func TestErrorCodeWireValues(t *testing.T) {
	wire := map[ErrorCode]string{
		CodeMissingPayload:        "MISSING_PAYLOAD",
		CodeMissingRequirements:   "MISSING_REQUIREMENTS",
		CodeNoMatchingRequirement: "NO_MATCHING_REQUIREMENT",
		CodeExpiredPayment:        "EXPIRED_PAYMENT",
		CodeInvalidSignature:      "INVALID_SIGNATURE",
		CodeSettlementFailed:      "SETTLEMENT_FAILED",
	}
	for code, want := range wire {
		if string(code) != want {
			t.Errorf("code %v: wire value %q, want %q", code, string(code), want)
		}
	}
}
