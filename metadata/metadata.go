// Package metadata reads and writes the x402 payment keys embedded in a
// task's status message. It tolerates the two equivalent shapes upstream
// serializers produce — a metadata map wrapping the keys in a
// "custom_fields" container, and a metadata map that is the container —
// and hands the rest of the overlay one canonical flat map.
package metadata

import (
	"encoding/json"
	"fmt"

	x402a2a "github.com/mark3labs/x402-a2a-go"
	"github.com/mark3labs/x402-a2a-go/a2a"
)

// Metadata keys recognized by the payment overlay.
const (
	// KeyStatus holds the current negotiation state (kebab-case string).
	KeyStatus = "x402.payment.status"

	// KeyRequired holds the quoted offers as a PaymentRequiredResponse.
	KeyRequired = "x402.payment.required"

	// KeyPayload holds the caller's submitted PaymentPayload.
	KeyPayload = "x402.payment.payload"

	// KeyReceipts holds the ordered settlement history.
	KeyReceipts = "x402.payment.receipts"

	// KeyError holds the last error code, present only on failure.
	KeyError = "x402.payment.error"
)

// customFieldsKey is the container some serializers wrap metadata in.
const customFieldsKey = "custom_fields"

// Fields returns the canonical payment metadata map of a task's status
// message. It returns an empty map when the task has no status message or
// no metadata. The returned map is the live container; mutations must go
// through Merge to keep the stored shape consistent.
func Fields(task *a2a.Task) map[string]any {
	if task == nil || task.Status.Message == nil {
		return map[string]any{}
	}
	return unwrap(task.Status.Message.Metadata)
}

// unwrap resolves the two tolerated metadata shapes to one flat map.
func unwrap(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	if inner, ok := meta[customFieldsKey].(map[string]any); ok {
		return inner
	}
	return meta
}

// Merge overlays fields onto the task's payment metadata, preserving
// unrelated keys already present. A status message is created if the task
// has none. The result is always stored under the custom_fields container,
// the canonical write shape.
func Merge(task *a2a.Task, fields map[string]any) {
	if task.Status.Message == nil {
		task.Status.Message = &a2a.Message{Role: a2a.RoleAgent}
	}

	current := unwrap(task.Status.Message.Metadata)
	merged := make(map[string]any, len(current)+len(fields))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range fields {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	task.Status.Message.Metadata = map[string]any{customFieldsKey: merged}
}

// Status returns the negotiation state recorded on the task, or false when
// no negotiation is in progress (absent or unrecognized key).
func Status(task *a2a.Task) (x402a2a.PaymentStatus, bool) {
	raw, ok := Fields(task)[KeyStatus].(string)
	if !ok {
		return "", false
	}
	status := x402a2a.PaymentStatus(raw)
	if !status.Valid() {
		return "", false
	}
	return status, true
}

// SetStatus records the negotiation state on the task.
func SetStatus(task *a2a.Task, status x402a2a.PaymentStatus) {
	Merge(task, map[string]any{KeyStatus: string(status)})
}

// SetError records the failure code on the task.
func SetError(task *a2a.Task, code x402a2a.ErrorCode) {
	Merge(task, map[string]any{KeyError: string(code)})
}

// ErrorCode returns the recorded failure code, if any.
func ErrorCode(task *a2a.Task) (x402a2a.ErrorCode, bool) {
	raw, ok := Fields(task)[KeyError].(string)
	if !ok || raw == "" {
		return "", false
	}
	return x402a2a.ErrorCode(raw), true
}

// SetRequired writes the quoted offers envelope.
func SetRequired(task *a2a.Task, required x402a2a.PaymentRequiredResponse) {
	Merge(task, map[string]any{KeyRequired: required})
}

// Required extracts the quoted offers envelope. Values round-trip through
// JSON so map-shaped metadata decoded off the wire binds to the typed
// struct.
func Required(task *a2a.Task) (*x402a2a.PaymentRequiredResponse, error) {
	raw, ok := Fields(task)[KeyRequired]
	if !ok {
		return nil, fmt.Errorf("%s not present", KeyRequired)
	}
	var required x402a2a.PaymentRequiredResponse
	if err := rebind(raw, &required); err != nil {
		return nil, fmt.Errorf("malformed %s: %w", KeyRequired, err)
	}
	return &required, nil
}

// SetPayload writes the caller's signed authorization.
func SetPayload(task *a2a.Task, payload x402a2a.PaymentPayload) {
	Merge(task, map[string]any{KeyPayload: payload})
}

// Payload extracts the caller's signed authorization, or an error when it is
// absent or malformed.
func Payload(task *a2a.Task) (*x402a2a.PaymentPayload, error) {
	raw, ok := Fields(task)[KeyPayload]
	if !ok {
		return nil, fmt.Errorf("%s not present", KeyPayload)
	}
	var payload x402a2a.PaymentPayload
	if err := rebind(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed %s: %w", KeyPayload, err)
	}
	return &payload, nil
}

// Receipts returns the settlement history recorded on the task, oldest
// first. Missing or malformed history yields an empty slice.
func Receipts(task *a2a.Task) []x402a2a.SettleResponse {
	raw, ok := Fields(task)[KeyReceipts]
	if !ok {
		return nil
	}
	var receipts []x402a2a.SettleResponse
	if err := rebind(raw, &receipts); err != nil {
		return nil
	}
	return receipts
}

// AppendReceipt appends one settlement outcome to the task's receipt
// history. Receipts are append-only: prior entries are carried over
// untouched.
func AppendReceipt(task *a2a.Task, receipt x402a2a.SettleResponse) {
	receipts := Receipts(task)
	receipts = append(receipts, receipt)
	Merge(task, map[string]any{KeyReceipts: receipts})
}

// ClearIntermediate drops the negotiation-scratch keys once a submission
// reaches a terminal outcome. The payload key always goes; the required key
// is kept on failure so the caller can still see what was quoted.
func ClearIntermediate(task *a2a.Task, dropRequired bool) {
	fields := map[string]any{KeyPayload: nil}
	if dropRequired {
		fields[KeyRequired] = nil
	}
	Merge(task, fields)
}

// rebind converts an arbitrarily-shaped decoded value to a typed target via
// a JSON round trip.
func rebind(raw any, target any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
