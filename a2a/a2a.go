// Package a2a declares the slice of the agent-to-agent protocol the x402
// extension consumes: tasks, messages, agent cards, and the executor/event
// contract. The transport itself is an external collaborator; this package
// only pins the wire shapes the payment engine reads and writes.
package a2a

import (
	"context"
	"net/http"
)

// TaskState is the A2A task lifecycle state.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Part is one segment of a message body.
type Part interface {
	PartKind() string
}

// TextPart is a plain-text message segment.
type TextPart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// PartKind implements Part.
func (p TextPart) PartKind() string { return "text" }

// NewTextPart builds a TextPart with the kind discriminator set.
func NewTextPart(text string) TextPart {
	return TextPart{Kind: "text", Text: text}
}

// Message is a single turn exchanged between two agents. TaskID ties a
// message to a prior task; payment submissions must set it.
type Message struct {
	MessageID string         `json:"messageId"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskStatus is the current state of a task plus the status message the
// server most recently attached to it.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// Task is the A2A unit of work. The payment engine treats it as opaque
// except for Metadata and Status.Message.Metadata.
type Task struct {
	ID        string         `json:"id"`
	ContextID string         `json:"contextId,omitempty"`
	Status    TaskStatus     `json:"status"`
	History   []*Message     `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AgentExtension declares a protocol extension in an agent card.
type AgentExtension struct {
	URI         string         `json:"uri"`
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required"`
	Params      map[string]any `json:"params,omitempty"`
}

// AgentCapabilities lists what an agent supports.
type AgentCapabilities struct {
	Extensions []AgentExtension `json:"extensions,omitempty"`
}

// AgentCard is the discovery document an agent publishes.
type AgentCard struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	URL          string            `json:"url,omitempty"`
	Capabilities AgentCapabilities `json:"capabilities"`
}

// Event is anything an executor may emit on the event queue.
type Event interface {
	isEvent()
}

func (*Task) isEvent()    {}
func (*Message) isEvent() {}

// EventQueue delivers events produced by an executor back to the transport.
// Enqueue may block while the transport applies backpressure.
type EventQueue interface {
	Enqueue(ctx context.Context, event Event) error
}

// RequestContext carries one inbound invocation: the triggering message, the
// task it belongs to (if the transport already knows one), and the transport
// request headers.
type RequestContext struct {
	TaskID      string
	ContextID   string
	Message     *Message
	CurrentTask *Task
	Headers     http.Header
}

// AgentExecutor is the unit the transport drives. Middleware in this module
// wraps one executor around another.
type AgentExecutor interface {
	Execute(ctx context.Context, reqCtx *RequestContext, queue EventQueue) error
	Cancel(ctx context.Context, reqCtx *RequestContext, queue EventQueue) error
}
