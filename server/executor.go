// Package server implements the merchant side of the payment negotiation:
// the executor that routes incoming tasks between business logic and the
// payment pipeline, and the store correlating quotes with resubmissions.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	x402a2a "github.com/mark3labs/x402-a2a-go"
	"github.com/mark3labs/x402-a2a-go/a2a"
	"github.com/mark3labs/x402-a2a-go/facilitator"
	"github.com/mark3labs/x402-a2a-go/metadata"
	"github.com/mark3labs/x402-a2a-go/validation"
)

// Executor drives one payment negotiation per task. It is safe for
// concurrent use across tasks; each task is processed end-to-end by a single
// call to Process.
type Executor struct {
	facilitator facilitator.Interface
	store       RequirementStore
	logger      *slog.Logger

	// now is replaceable in tests to pin the expiry clock.
	now func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithStore injects the requirement store. Defaults to an in-memory store
// with the default quote TTL.
func WithStore(store RequirementStore) ExecutorOption {
	return func(e *Executor) {
		e.store = store
	}
}

// WithLogger sets the executor's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor that verifies and settles submissions
// through the given facilitator.
func NewExecutor(f facilitator.Interface, opts ...ExecutorOption) *Executor {
	e := &Executor{
		facilitator: f,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = NewMemoryRequirementStore(DefaultQuoteTTL)
	}
	return e
}

// Store returns the executor's requirement store.
func (e *Executor) Store() RequirementStore {
	return e.store
}

// Process is the single entry point of the negotiation engine. Submitted
// payments run the payment pipeline; everything else goes to the business
// logic, whose result either completes the task or quotes payment. The
// returned task is always non-nil and carries the outcome; the error return
// is reserved for fatal business-logic failures, in which case the task is
// marked failed with no payment metadata written.
func (e *Executor) Process(ctx context.Context, task *a2a.Task, logic LogicFunc) (*a2a.Task, error) {
	if status, ok := metadata.Status(task); ok && status == x402a2a.StatusPaymentSubmitted {
		return e.processSubmission(ctx, task), nil
	}

	result, err := logic(ctx, task)
	if err != nil {
		e.logger.Error("business logic failed", "taskId", task.ID, "error", err)
		task.Status = a2a.TaskStatus{
			State:   a2a.StateFailed,
			Message: a2a.NewTextMessage(a2a.RoleAgent, "internal error"),
		}
		return task, err
	}

	if result.PaymentRequired() {
		// A malformed offer is a merchant bug, handled like any other fatal
		// logic failure: never quoted, never stored.
		for i := range result.requirements {
			if err := validation.ValidatePaymentRequirement(result.requirements[i]); err != nil {
				e.logger.Error("refusing to quote invalid requirement", "taskId", task.ID, "error", err)
				task.Status = a2a.TaskStatus{
					State:   a2a.StateFailed,
					Message: a2a.NewTextMessage(a2a.RoleAgent, "internal error"),
				}
				return task, err
			}
		}
		return e.quote(task, result), nil
	}
	return result.task, nil
}

// quote stores the offers for later correlation and parks the task in the
// input-required state with the payment-required envelope attached.
func (e *Executor) quote(task *a2a.Task, result Result) *a2a.Task {
	e.store.Put(task.ID, result.requirements)

	message := result.message
	if message == "" {
		message = "Payment required"
	}

	// Replacing the status message drops its metadata; the receipt history
	// survives across requotes.
	receipts := metadata.Receipts(task)
	task.Status = a2a.TaskStatus{
		State:   a2a.StateInputRequired,
		Message: a2a.NewTextMessage(a2a.RoleAgent, message),
	}
	if len(receipts) > 0 {
		metadata.Merge(task, map[string]any{metadata.KeyReceipts: receipts})
	}
	metadata.SetRequired(task, x402a2a.PaymentRequiredResponse{
		X402Version: x402a2a.X402Version,
		Accepts:     result.requirements,
		Error:       message,
	})
	metadata.SetStatus(task, x402a2a.StatusPaymentRequired)

	e.logger.Info("payment quoted",
		"taskId", task.ID, "offers", len(result.requirements))
	return task
}

// processSubmission runs the submission pipeline: extract the payload, match
// it against the stored quote, verify, settle, and record the receipt. Every
// path out of this function is terminal for the negotiation, so the store
// entry is dropped no matter which branch rejects.
func (e *Executor) processSubmission(ctx context.Context, task *a2a.Task) *a2a.Task {
	defer e.store.Delete(task.ID)

	payload, err := metadata.Payload(task)
	if err != nil {
		return e.reject(task, x402a2a.NewPaymentError(
			x402a2a.CodeMissingPayload, "submission carries no payment payload", err))
	}

	requirements, storedAt, ok := e.store.Get(task.ID)
	if !ok {
		return e.reject(task, x402a2a.NewPaymentError(
			x402a2a.CodeMissingRequirements, "no stored quote for task", nil).
			WithDetails("taskId", task.ID))
	}

	requirement, ok := matchRequirement(requirements, payload)
	if !ok {
		return e.reject(task, x402a2a.NewPaymentError(
			x402a2a.CodeNoMatchingRequirement, "no quoted offer matches payload", nil).
			WithDetails("scheme", payload.Scheme).
			WithDetails("network", payload.Network))
	}

	if expired(requirement, storedAt, e.now()) {
		return e.reject(task, x402a2a.NewPaymentError(
			x402a2a.CodeExpiredPayment, "quote validity window elapsed", nil).
			WithDetails("maxTimeoutSeconds", requirement.MaxTimeoutSeconds))
	}

	verifyResp, err := e.facilitator.Verify(ctx, *payload, *requirement)
	if err != nil {
		return e.reject(task, x402a2a.NewPaymentError(
			x402a2a.CodeInvalidSignature, "verification call failed", err))
	}
	if !verifyResp.IsValid {
		reason := verifyResp.InvalidReason
		if reason == "" {
			reason = "authorization rejected"
		}
		return e.reject(task, x402a2a.NewPaymentError(
			x402a2a.CodeInvalidSignature, reason, nil))
	}

	metadata.SetStatus(task, x402a2a.StatusPaymentVerified)
	e.logger.Info("payment verified", "taskId", task.ID, "payer", verifyResp.Payer)

	settleResp, err := e.facilitator.Settle(ctx, *payload, *requirement)
	if err != nil {
		// Transport errors become a synthetic failed receipt, not a raw error.
		settleResp = &x402a2a.SettleResponse{
			Success:     false,
			Network:     requirement.Network,
			ErrorReason: err.Error(),
		}
	}

	metadata.AppendReceipt(task, *settleResp)

	if !settleResp.Success {
		reason := settleResp.ErrorReason
		if reason == "" {
			reason = "settlement failed"
		}
		metadata.SetStatus(task, x402a2a.StatusPaymentFailed)
		metadata.SetError(task, x402a2a.CodeSettlementFailed)
		metadata.ClearIntermediate(task, false)
		task.Status.State = a2a.StateFailed
		e.logger.Warn("settlement failed", "taskId", task.ID, "reason", reason)
		return task
	}

	metadata.SetStatus(task, x402a2a.StatusPaymentCompleted)
	metadata.ClearIntermediate(task, true)
	task.Status.State = a2a.StateCompleted
	task.SetTextArtifact(successSummary(requirement, settleResp))

	e.logger.Info("payment settled",
		"taskId", task.ID, "network", settleResp.Network, "transaction", settleResp.Transaction)
	return task
}

// reject terminates a submission before settlement: the task fails with the
// error code recorded, a failed receipt appended, and the payload dropped.
// The quoted offers stay visible so the caller can see what was asked.
func (e *Executor) reject(task *a2a.Task, perr *x402a2a.PaymentError) *a2a.Task {
	e.logger.Warn("payment submission rejected",
		"taskId", task.ID, "code", perr.Code, "error", perr)

	reason := perr.Message
	if perr.Err != nil {
		reason = fmt.Sprintf("%s: %v", perr.Message, perr.Err)
	}
	metadata.AppendReceipt(task, x402a2a.SettleResponse{
		Success:     false,
		ErrorReason: reason,
	})
	metadata.SetStatus(task, x402a2a.StatusPaymentFailed)
	metadata.SetError(task, perr.Code)
	metadata.ClearIntermediate(task, false)

	task.Status.State = a2a.StateFailed
	return task
}

// matchRequirement selects the first stored offer whose scheme and network
// equal the payload's. Quote order encodes merchant preference.
func matchRequirement(requirements []x402a2a.PaymentRequirement, payload *x402a2a.PaymentPayload) (*x402a2a.PaymentRequirement, bool) {
	for i := range requirements {
		if requirements[i].Scheme == payload.Scheme && requirements[i].Network == payload.Network {
			return &requirements[i], true
		}
	}
	return nil, false
}

// expired reports whether the quote's validity window has elapsed. A zero or
// negative timeout never expires.
func expired(requirement *x402a2a.PaymentRequirement, storedAt time.Time, now time.Time) bool {
	if requirement.MaxTimeoutSeconds <= 0 {
		return false
	}
	deadline := storedAt.Add(time.Duration(requirement.MaxTimeoutSeconds) * time.Second)
	return now.After(deadline)
}

// successSummary renders the artifact attached on completion, drawing the
// purchased item from the requirement's extension map when present.
func successSummary(requirement *x402a2a.PaymentRequirement, settle *x402a2a.SettleResponse) string {
	item := requirement.Description
	if product, ok := requirement.Extra["product"].(string); ok && product != "" {
		item = product
	}
	if item == "" {
		item = requirement.Resource
	}
	return fmt.Sprintf("Payment settled for %s on %s (tx %s)", item, settle.Network, settle.Transaction)
}
