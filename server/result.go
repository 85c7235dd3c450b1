package server

import (
	"context"

	x402a2a "github.com/mark3labs/x402-a2a-go"
	"github.com/mark3labs/x402-a2a-go/a2a"
)

// Result is the outcome of a business-logic invocation: either the finished
// task, or a demand for payment carrying the offers to quote. Exactly one
// branch is set.
type Result struct {
	task         *a2a.Task
	requirements []x402a2a.PaymentRequirement
	message      string
}

// Proceed wraps a finished task. The executor returns it to the caller
// unchanged.
func Proceed(task *a2a.Task) Result {
	return Result{task: task}
}

// Quote demands payment before the work is done. Requirements are quoted in
// preference order; message is the human-readable reason payment is required.
func Quote(requirements []x402a2a.PaymentRequirement, message string) Result {
	return Result{requirements: requirements, message: message}
}

// PaymentRequired reports whether the result demands payment.
func (r Result) PaymentRequired() bool {
	return len(r.requirements) > 0
}

// LogicFunc is the merchant's business logic. It receives the incoming task
// and returns either Proceed with the finished task or Quote with payment
// offers. Errors are fatal for the task and are not modeled as negotiation
// states.
type LogicFunc func(ctx context.Context, task *a2a.Task) (Result, error)
