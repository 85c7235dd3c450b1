// Package client drives the caller's side of the payment negotiation: it
// sends tasks, detects payment-required responses, signs the quoted offer
// with a wallet signer, and resubmits the payment under the same task id.
package client

import (
	"context"
	"fmt"
	"log/slog"

	x402a2a "github.com/mark3labs/x402-a2a-go"
	"github.com/mark3labs/x402-a2a-go/a2a"
	"github.com/mark3labs/x402-a2a-go/metadata"
)

// TaskSender delivers a task to the merchant and returns the merchant's
// response. Implementations carry the transport (see a2a/a2ahttp).
type TaskSender interface {
	Send(ctx context.Context, task *a2a.Task) (*a2a.Task, error)
}

// ApprovalFunc is consulted before signing a quoted offer. Returning false
// declines the payment and aborts the negotiation with ErrPaymentDeclined.
type ApprovalFunc func(requirement *x402a2a.PaymentRequirement) bool

// Flow mirrors the merchant's negotiation state machine from the caller's
// side.
type Flow struct {
	sender   TaskSender
	signers  []x402a2a.Signer
	selector x402a2a.OfferSelector
	approve  ApprovalFunc
	logger   *slog.Logger
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithSigner adds a wallet signer. Signers are consulted in the order added,
// subject to their priorities.
func WithSigner(signer x402a2a.Signer) FlowOption {
	return func(f *Flow) {
		f.signers = append(f.signers, signer)
	}
}

// WithSelector replaces the offer selection strategy. Defaults to
// DefaultOfferSelector.
func WithSelector(selector x402a2a.OfferSelector) FlowOption {
	return func(f *Flow) {
		f.selector = selector
	}
}

// WithApproval sets the approval callback consulted before signing. Without
// one, every quoted offer is approved.
func WithApproval(approve ApprovalFunc) FlowOption {
	return func(f *Flow) {
		f.approve = approve
	}
}

// WithLogger sets the flow's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) FlowOption {
	return func(f *Flow) {
		f.logger = logger
	}
}

// NewFlow creates a client flow sending tasks through the given sender.
func NewFlow(sender TaskSender, opts ...FlowOption) *Flow {
	f := &Flow{
		sender:   sender,
		selector: x402a2a.NewDefaultOfferSelector(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PaymentRequired reports whether the task is parked waiting for payment:
// state input-required with negotiation state payment-required.
func PaymentRequired(task *a2a.Task) bool {
	if task == nil || task.Status.State != a2a.StateInputRequired {
		return false
	}
	status, ok := metadata.Status(task)
	return ok && status == x402a2a.StatusPaymentRequired
}

// PaymentCompleted reports whether the task's negotiation settled
// successfully.
func PaymentCompleted(task *a2a.Task) bool {
	status, ok := metadata.Status(task)
	return ok && status == x402a2a.StatusPaymentCompleted
}

// Receipts returns the settlement history recorded on the task, oldest first.
func Receipts(task *a2a.Task) []x402a2a.SettleResponse {
	return metadata.Receipts(task)
}

// Ask sends a text request and drives the negotiation to its end: if the
// merchant demands payment, the flow signs the quoted offer and resubmits
// under the same task id. The returned task is the merchant's final answer.
func (f *Flow) Ask(ctx context.Context, text string) (*a2a.Task, error) {
	return f.Run(ctx, a2a.NewTask(text))
}

// Run sends a prepared task and handles a payment-required response.
func (f *Flow) Run(ctx context.Context, task *a2a.Task) (*a2a.Task, error) {
	response, err := f.sender.Send(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to send task: %w", err)
	}
	if !PaymentRequired(response) {
		return response, nil
	}
	return f.Pay(ctx, response)
}

// Pay signs the quoted offer on a payment-required task and resubmits it.
// Reusing the original task identifier is what binds the submission to the
// merchant's stored quote.
func (f *Flow) Pay(ctx context.Context, task *a2a.Task) (*a2a.Task, error) {
	required, err := metadata.Required(task)
	if err != nil {
		return nil, fmt.Errorf("payment-required task without offers: %w", err)
	}
	if len(required.Accepts) == 0 {
		return nil, x402a2a.ErrNoOffers
	}

	payload, requirement, err := f.selector.SelectAndSign(required.Accepts, f.signers)
	if err != nil {
		return nil, err
	}

	if f.approve != nil && !f.approve(requirement) {
		f.logger.Info("payment declined", "taskId", task.ID, "resource", requirement.Resource)
		return nil, x402a2a.ErrPaymentDeclined
	}

	f.logger.Info("submitting payment",
		"taskId", task.ID, "network", requirement.Network, "amount", requirement.MaxAmountRequired)

	submission := &a2a.Task{
		ID:      task.ID,
		Message: task.Message,
		Status:  a2a.TaskStatus{State: a2a.StateInputRequired},
	}
	metadata.SetPayload(submission, *payload)
	metadata.SetStatus(submission, x402a2a.StatusPaymentSubmitted)

	final, err := f.sender.Send(ctx, submission)
	if err != nil {
		return nil, fmt.Errorf("failed to resubmit task: %w", err)
	}

	if !PaymentCompleted(final) {
		// Soft warning only: the caller gets the task plus its receipts and
		// decides what to do.
		f.logger.Warn("payment did not complete",
			"taskId", final.ID, "state", final.Status.State, "receipts", len(Receipts(final)))
	}
	return final, nil
}
