package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	x402a2a "github.com/mark3labs/x402-a2a-go"
	"github.com/mark3labs/x402-a2a-go/a2a"
	"github.com/mark3labs/x402-a2a-go/facilitator"
	"github.com/mark3labs/x402-a2a-go/metadata"
)

func quotedOffer() x402a2a.PaymentRequirement {
	return x402a2a.PaymentRequirement{
		Scheme:            "exact",
		Network:           "base-sepolia",
		MaxAmountRequired: "5000000",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		Description:       "Purchase of banana",
		MaxTimeoutSeconds: 300,
	}
}

func signedPayload(scheme, network string) x402a2a.PaymentPayload {
	return x402a2a.PaymentPayload{
		X402Version: 1,
		Scheme:      scheme,
		Network:     network,
		Payload: x402a2a.EVMPayload{
			Signature: "0xsigned",
			Authorization: x402a2a.EVMAuthorization{
				From:  "0x1111111111111111111111111111111111111111",
				To:    "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
				Value: "5000000",
			},
		},
	}
}

// quoteLogic always demands payment with the fixture offer.
func quoteLogic(_ context.Context, _ *a2a.Task) (Result, error) {
	return Quote([]x402a2a.PaymentRequirement{quotedOffer()}, "Payment of 5 USDC required"), nil
}

// submission builds the resubmitted task the client flow would send.
func submission(taskID string, payload x402a2a.PaymentPayload) *a2a.Task {
	task := &a2a.Task{
		ID:     taskID,
		Status: a2a.TaskStatus{State: a2a.StateInputRequired},
	}
	metadata.SetPayload(task, payload)
	metadata.SetStatus(task, x402a2a.StatusPaymentSubmitted)
	return task
}

func newTestExecutor(t *testing.T, mock *facilitator.Mock) *Executor {
	t.Helper()
	store := NewMemoryRequirementStore(0)
	return NewExecutor(mock, WithStore(store))
}

func mustStatus(t *testing.T, task *a2a.Task, want x402a2a.PaymentStatus) {
	t.Helper()
	status, ok := metadata.Status(task)
	if !ok || status != want {
		t.Fatalf("negotiation status = %v ok=%v, want %v", status, ok, want)
	}
}

func mustErrorCode(t *testing.T, task *a2a.Task, want x402a2a.ErrorCode) {
	t.Helper()
	code, ok := metadata.ErrorCode(task)
	if !ok || code != want {
		t.Fatalf("error code = %v ok=%v, want %v", code, ok, want)
	}
}

func TestProcessFreePath(t *testing.T) {
	executor := newTestExecutor(t, facilitator.NewMock())

	task := a2a.NewTask("what do you sell?")
	result, err := executor.Process(context.Background(), task, func(_ context.Context, task *a2a.Task) (Result, error) {
		task.Status = a2a.TaskStatus{
			State:   a2a.StateCompleted,
			Message: a2a.NewTextMessage(a2a.RoleAgent, "everything"),
		}
		return Proceed(task), nil
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Status.State != a2a.StateCompleted {
		t.Errorf("state = %v, want completed", result.Status.State)
	}
	if _, ok := metadata.Status(result); ok {
		t.Error("free path must not write negotiation metadata")
	}
}

func TestProcessFatalLogicError(t *testing.T) {
	executor := newTestExecutor(t, facilitator.NewMock())

	task := a2a.NewTask("boom")
	result, err := executor.Process(context.Background(), task, func(_ context.Context, _ *a2a.Task) (Result, error) {
		return Result{}, errors.New("database on fire")
	})
	if err == nil {
		t.Fatal("expected fatal error to propagate")
	}

	if result.Status.State != a2a.StateFailed {
		t.Errorf("state = %v, want failed", result.Status.State)
	}
	if len(metadata.Receipts(result)) != 0 {
		t.Error("fatal errors must not record receipts")
	}
	if _, ok := metadata.ErrorCode(result); ok {
		t.Error("fatal errors carry no payment error code")
	}
}

func TestProcessRefusesInvalidQuote(t *testing.T) {
	executor := newTestExecutor(t, facilitator.NewMock())

	task := a2a.NewTask("buy a banana")
	result, err := executor.Process(context.Background(), task, func(_ context.Context, _ *a2a.Task) (Result, error) {
		bad := quotedOffer()
		bad.PayTo = "not-an-address"
		return Quote([]x402a2a.PaymentRequirement{bad}, "pay up"), nil
	})
	if err == nil {
		t.Fatal("expected a malformed offer to be fatal")
	}
	if result.Status.State != a2a.StateFailed {
		t.Errorf("state = %v, want failed", result.Status.State)
	}
	if _, _, ok := executor.Store().Get(task.ID); ok {
		t.Error("invalid quote must not be stored")
	}
}

func TestProcessQuotePipeline(t *testing.T) {
	executor := newTestExecutor(t, facilitator.NewMock())

	task := a2a.NewTask("buy a banana")
	result, err := executor.Process(context.Background(), task, quoteLogic)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Status.State != a2a.StateInputRequired {
		t.Errorf("state = %v, want input-required", result.Status.State)
	}
	mustStatus(t, result, x402a2a.StatusPaymentRequired)

	required, err := metadata.Required(result)
	if err != nil {
		t.Fatalf("Required: %v", err)
	}
	if required.X402Version != 1 || len(required.Accepts) != 1 {
		t.Errorf("unexpected envelope: %+v", required)
	}
	if required.Error != "Payment of 5 USDC required" {
		t.Errorf("envelope error = %q", required.Error)
	}

	if _, _, ok := executor.Store().Get(task.ID); !ok {
		t.Error("quote must be stored for correlation")
	}
}

func TestProcessHappyPath(t *testing.T) {
	mock := facilitator.NewMock()
	executor := newTestExecutor(t, mock)

	task := a2a.NewTask("buy a banana")
	quoted, err := executor.Process(context.Background(), task, quoteLogic)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	final, err := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base-sepolia")), quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}

	if final.Status.State != a2a.StateCompleted {
		t.Errorf("state = %v, want completed", final.Status.State)
	}
	mustStatus(t, final, x402a2a.StatusPaymentCompleted)

	receipts := metadata.Receipts(final)
	if len(receipts) != 1 || !receipts[0].Success {
		t.Fatalf("receipts = %+v, want one success", receipts)
	}
	if receipts[0].Network != "base-sepolia" {
		t.Errorf("receipt network = %s", receipts[0].Network)
	}

	if mock.VerifyCalls() != 1 || mock.SettleCalls() != 1 {
		t.Errorf("facilitator calls: verify=%d settle=%d, want 1/1", mock.VerifyCalls(), mock.SettleCalls())
	}

	// Intermediate keys are gone; the artifact names the purchase.
	fields := metadata.Fields(final)
	if _, ok := fields[metadata.KeyPayload]; ok {
		t.Error("payload key should be dropped after completion")
	}
	if _, ok := fields[metadata.KeyRequired]; ok {
		t.Error("required key should be dropped after completion")
	}
	if final.ArtifactText() == "" {
		t.Error("expected a success artifact")
	}

	if _, _, ok := executor.Store().Get(task.ID); ok {
		t.Error("store entry must be deleted on completion")
	}
}

func TestProcessInvalidSignature(t *testing.T) {
	mock := facilitator.NewMock()
	mock.Valid = false
	executor := newTestExecutor(t, mock)

	task := a2a.NewTask("buy a banana")
	quoted, _ := executor.Process(context.Background(), task, quoteLogic)

	final, err := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base-sepolia")), quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}

	if final.Status.State != a2a.StateFailed {
		t.Errorf("state = %v, want failed", final.Status.State)
	}
	mustStatus(t, final, x402a2a.StatusPaymentFailed)
	mustErrorCode(t, final, x402a2a.CodeInvalidSignature)

	if mock.SettleCalls() != 0 {
		t.Error("settlement must not be attempted after failed verification")
	}
	if _, _, ok := executor.Store().Get(task.ID); ok {
		t.Error("store entry must be deleted on failure too")
	}
}

// downFacilitator fails every verification at the transport level.
type downFacilitator struct {
	facilitator.Mock
}

func (d *downFacilitator) Verify(context.Context, x402a2a.PaymentPayload, x402a2a.PaymentRequirement) (*x402a2a.VerifyResponse, error) {
	return nil, errors.New("facilitator: connection refused")
}

func TestProcessVerifyTransportError(t *testing.T) {
	store := NewMemoryRequirementStore(0)
	executor := NewExecutor(&downFacilitator{}, WithStore(store))

	task := a2a.NewTask("buy a banana")
	quoted, _ := executor.Process(context.Background(), task, quoteLogic)

	final, err := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base-sepolia")), quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}

	mustErrorCode(t, final, x402a2a.CodeInvalidSignature)

	receipts := metadata.Receipts(final)
	if len(receipts) != 1 || receipts[0].Success {
		t.Fatalf("receipts = %+v, want one failure", receipts)
	}
	if !strings.Contains(receipts[0].ErrorReason, "connection refused") {
		t.Errorf("receipt reason = %q, want the underlying error text", receipts[0].ErrorReason)
	}
}

func TestProcessUnmatchedSubmission(t *testing.T) {
	mock := facilitator.NewMock()
	executor := newTestExecutor(t, mock)

	task := a2a.NewTask("buy a banana")
	quoted, _ := executor.Process(context.Background(), task, quoteLogic)

	// Payload network differs from the quoted network.
	final, err := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base")), quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}

	mustErrorCode(t, final, x402a2a.CodeNoMatchingRequirement)
	if mock.VerifyCalls() != 0 || mock.SettleCalls() != 0 {
		t.Error("no facilitator call may happen for an unmatched submission")
	}
}

func TestProcessMatchingTieBreak(t *testing.T) {
	mock := facilitator.NewMock()
	store := NewMemoryRequirementStore(0)
	executor := NewExecutor(mock, WithStore(store))

	offerA := quotedOffer()
	offerB := quotedOffer()
	offerB.Network = "base"
	offerB.Description = "Purchase of banana on base"
	store.Put("task-tie", []x402a2a.PaymentRequirement{offerA, offerB})

	final, err := executor.Process(context.Background(),
		submission("task-tie", signedPayload("exact", "base")), quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}

	mustStatus(t, final, x402a2a.StatusPaymentCompleted)
	receipts := metadata.Receipts(final)
	if len(receipts) != 1 || receipts[0].Network != "base" {
		t.Errorf("settled against wrong offer: %+v", receipts)
	}
}

func TestProcessMissingPayload(t *testing.T) {
	mock := facilitator.NewMock()
	executor := newTestExecutor(t, mock)

	task := a2a.NewTask("buy a banana")
	quoted, _ := executor.Process(context.Background(), task, quoteLogic)

	// Resubmitted as payment-submitted but without a payload.
	resubmit := &a2a.Task{ID: quoted.ID, Status: a2a.TaskStatus{State: a2a.StateInputRequired}}
	metadata.SetStatus(resubmit, x402a2a.StatusPaymentSubmitted)

	final, err := executor.Process(context.Background(), resubmit, quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}

	mustErrorCode(t, final, x402a2a.CodeMissingPayload)
	if mock.VerifyCalls() != 0 {
		t.Error("no facilitator call without a payload")
	}
	if _, _, ok := executor.Store().Get(quoted.ID); ok {
		t.Error("store entry must be deleted when the submission has no payload")
	}
}

func TestProcessDuplicateResubmission(t *testing.T) {
	executor := newTestExecutor(t, facilitator.NewMock())

	task := a2a.NewTask("buy a banana")
	quoted, _ := executor.Process(context.Background(), task, quoteLogic)

	first, err := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base-sepolia")), quoteLogic)
	if err != nil {
		t.Fatalf("first submission: %v", err)
	}
	mustStatus(t, first, x402a2a.StatusPaymentCompleted)

	// The entry is gone; a replay must be rejected, not re-quoted.
	replay, err := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base-sepolia")), quoteLogic)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	mustErrorCode(t, replay, x402a2a.CodeMissingRequirements)
	if replay.Status.State != a2a.StateFailed {
		t.Errorf("replay state = %v, want failed", replay.Status.State)
	}
}

func TestProcessExpiredPayment(t *testing.T) {
	mock := facilitator.NewMock()
	store := NewMemoryRequirementStore(0)
	executor := NewExecutor(mock, WithStore(store))

	clock := time.Now()
	executor.now = func() time.Time { return clock }

	task := a2a.NewTask("buy a banana")
	quoted, _ := executor.Process(context.Background(), task, quoteLogic)

	// The quote allows 300 seconds; arrive well after.
	clock = clock.Add(10 * time.Minute)

	final, err := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base-sepolia")), quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}

	mustErrorCode(t, final, x402a2a.CodeExpiredPayment)
	if mock.VerifyCalls() != 0 {
		t.Error("no facilitator call for an expired quote")
	}
}

func TestProcessZeroTimeoutNeverExpires(t *testing.T) {
	mock := facilitator.NewMock()
	store := NewMemoryRequirementStore(0)
	executor := NewExecutor(mock, WithStore(store))

	clock := time.Now()
	executor.now = func() time.Time { return clock }

	offer := quotedOffer()
	offer.MaxTimeoutSeconds = 0
	store.Put("task-forever", []x402a2a.PaymentRequirement{offer})

	clock = clock.Add(24 * time.Hour)

	final, err := executor.Process(context.Background(),
		submission("task-forever", signedPayload("exact", "base-sepolia")), quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}
	mustStatus(t, final, x402a2a.StatusPaymentCompleted)
}

func TestProcessSettlementFailure(t *testing.T) {
	mock := facilitator.NewMock()
	mock.Settled = false
	executor := newTestExecutor(t, mock)

	task := a2a.NewTask("buy a banana")
	quoted, _ := executor.Process(context.Background(), task, quoteLogic)

	final, err := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base-sepolia")), quoteLogic)
	if err != nil {
		t.Fatalf("submission: %v", err)
	}

	if final.Status.State != a2a.StateFailed {
		t.Errorf("state = %v, want failed", final.Status.State)
	}
	mustStatus(t, final, x402a2a.StatusPaymentFailed)
	mustErrorCode(t, final, x402a2a.CodeSettlementFailed)

	receipts := metadata.Receipts(final)
	if len(receipts) != 1 || receipts[0].Success {
		t.Fatalf("receipts = %+v, want one failure", receipts)
	}

	// The quoted offers stay visible on failure; only the payload goes.
	fields := metadata.Fields(final)
	if _, ok := fields[metadata.KeyPayload]; ok {
		t.Error("payload key should be dropped")
	}
	if _, ok := fields[metadata.KeyRequired]; !ok {
		t.Error("required key should survive a settlement failure")
	}
}

func TestReceiptsAccumulateAcrossNegotiations(t *testing.T) {
	mock := facilitator.NewMock()
	mock.Settled = false
	executor := newTestExecutor(t, mock)

	task := a2a.NewTask("buy a banana")
	quoted, _ := executor.Process(context.Background(), task, quoteLogic)

	// First attempt fails at settlement.
	failed, _ := executor.Process(context.Background(),
		submission(quoted.ID, signedPayload("exact", "base-sepolia")), quoteLogic)
	firstReceipts := metadata.Receipts(failed)
	if len(firstReceipts) != 1 {
		t.Fatalf("receipts after first attempt = %d, want 1", len(firstReceipts))
	}

	// The merchant quotes again for the same task; this time settlement works.
	mock.Settled = true
	requoted, _ := executor.Process(context.Background(), failed, quoteLogic)
	if len(metadata.Receipts(requoted)) != 1 {
		t.Fatal("requote must preserve the receipt history")
	}

	resubmit := submission(requoted.ID, signedPayload("exact", "base-sepolia"))
	// Carry the prior history forward the way a real transport would.
	metadata.Merge(resubmit, map[string]any{
		metadata.KeyReceipts: metadata.Fields(requoted)[metadata.KeyReceipts],
	})

	final, err := executor.Process(context.Background(), resubmit, quoteLogic)
	if err != nil {
		t.Fatalf("second submission: %v", err)
	}

	receipts := metadata.Receipts(final)
	if len(receipts) != 2 {
		t.Fatalf("receipts = %d, want 2", len(receipts))
	}
	if receipts[0].Success || !receipts[1].Success {
		t.Errorf("receipt order wrong: %+v", receipts)
	}
	if receipts[0].ErrorReason != firstReceipts[0].ErrorReason {
		t.Error("first receipt changed by second append")
	}
}
