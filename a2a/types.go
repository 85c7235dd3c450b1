// Package a2a defines the task transport contract the payment overlay rides
// on: tasks with a status message, text parts, output artifacts, and agent
// cards advertising the payment extension.
package a2a

import "github.com/google/uuid"

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	// StateSubmitted means the task has been received but not started.
	StateSubmitted TaskState = "submitted"

	// StateWorking means the task is being processed.
	StateWorking TaskState = "working"

	// StateInputRequired means the task is waiting for caller action. The
	// payment overlay uses this state while a quote is outstanding.
	StateInputRequired TaskState = "input-required"

	// StateCompleted means the task finished successfully.
	StateCompleted TaskState = "completed"

	// StateFailed means the task terminated with an error.
	StateFailed TaskState = "failed"

	// StateCanceled means the task was canceled before completion.
	StateCanceled TaskState = "canceled"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	// RoleUser marks messages authored by the caller.
	RoleUser MessageRole = "user"

	// RoleAgent marks messages authored by the serving agent.
	RoleAgent MessageRole = "agent"
)

// Part is one piece of message or artifact content.
type Part struct {
	// Type discriminates the part content (currently only "text").
	Type string `json:"type"`

	// Text is the content for text parts.
	Text string `json:"text,omitempty"`
}

// TextPart creates a text content part.
func TextPart(text string) Part {
	return Part{Type: "text", Text: text}
}

// Message is a single exchange between caller and agent. Metadata may carry
// protocol extension keys; it tolerates both a flat key-value map and a map
// wrapping the keys in a "custom_fields" container, depending on the
// serializer that produced it.
type Message struct {
	Role     MessageRole    `json:"role"`
	Parts    []Part         `json:"parts,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTextMessage creates a message with a single text part.
func NewTextMessage(role MessageRole, text string) *Message {
	return &Message{
		Role:  role,
		Parts: []Part{TextPart(text)},
	}
}

// Text returns the concatenated text parts of the message.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == "text" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// TaskStatus is the current state of a task plus an optional status message.
type TaskStatus struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

// Artifact is a unit of task output.
type Artifact struct {
	Name  string `json:"name,omitempty"`
	Parts []Part `json:"parts"`
}

// Task is an opaque unit of work. The payment overlay mutates its status and
// artifacts but never its identity; identifier reuse across submissions is
// the correlation mechanism binding a payment to its quote.
type Task struct {
	ID        string         `json:"id"`
	Message   *Message       `json:"message,omitempty"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewTask creates a submitted task with a fresh UUID and the given user
// message text.
func NewTask(text string) *Task {
	return &Task{
		ID:      uuid.NewString(),
		Message: NewTextMessage(RoleUser, text),
		Status:  TaskStatus{State: StateSubmitted},
	}
}

// UserText returns the text of the task's request message.
func (t *Task) UserText() string {
	return t.Message.Text()
}

// ArtifactText returns the concatenated text parts of all artifacts.
func (t *Task) ArtifactText() string {
	var out string
	for _, a := range t.Artifacts {
		for _, p := range a.Parts {
			if p.Type != "text" {
				continue
			}
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// SetTextArtifact replaces the task's artifacts with a single text artifact.
func (t *Task) SetTextArtifact(text string) {
	t.Artifacts = []Artifact{{Parts: []Part{TextPart(text)}}}
}
