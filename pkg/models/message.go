// Package models provides domain types for the Orbit orchestration engine.
package models

import (
	"encoding/json"
	"time"
)

// SessionState is the orchestration loop state recorded on a session.
type SessionState string

const (
	// StateIdle means the session exists but no model call has been made yet.
	StateIdle SessionState = "idle"

	// StateAwaitingModel means a model call is in flight.
	StateAwaitingModel SessionState = "awaiting_model"

	// StateExecutingTools means tool invocations from the last model turn are running.
	StateExecutingTools SessionState = "executing_tools"

	// StateCompleted is terminal: the model produced a final answer.
	StateCompleted SessionState = "completed"

	// StateAborted is terminal: a safeguard tripped or a critical tool failed.
	StateAborted SessionState = "aborted"
)

// Terminal reports whether the state is one of the two terminal states.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Session identifies one ongoing conversation between a caller and the loop.
// A session is mutated only by its own loop instance; persisted snapshots are
// owned by the session store.
type Session struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"owner_id"`
	State       SessionState `json:"state"`
	AbortReason string       `json:"abort_reason,omitempty"`

	// Iterations and CostTokens are cumulative and never decrease.
	Iterations int `json:"iterations"`
	CostTokens int `json:"cost_tokens"`

	// Summary is the bounded digest of history that has been folded out of
	// the verbatim message window. Derived, never authoritative.
	Summary string `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn in a conversation. Immutable once appended; ordinals
// are strictly increasing per session and never renumbered.
type Message struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Ordinal     int          `json:"ordinal"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ToolCall is a model's request to execute a named tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the summarized output of one tool invocation, as fed back
// into the conversation.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// InvocationStatus tracks a ToolInvocation's lifecycle. An invocation reaches
// a terminal status exactly once and is never reused.
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "pending"
	InvocationRunning   InvocationStatus = "running"
	InvocationSucceeded InvocationStatus = "succeeded"
	InvocationFailed    InvocationStatus = "failed"
	InvocationSkipped   InvocationStatus = "skipped"
)

// Terminal reports whether the status is final.
func (s InvocationStatus) Terminal() bool {
	return s == InvocationSucceeded || s == InvocationFailed || s == InvocationSkipped
}

// ToolInvocation is the record of a single requested tool call. A retry
// creates a new record pointing at the original via RetryOf.
type ToolInvocation struct {
	ID            string           `json:"id"`
	ToolName      string           `json:"tool_name"`
	RawInput      json.RawMessage  `json:"raw_input,omitempty"`
	ResolvedInput json.RawMessage  `json:"resolved_input,omitempty"`
	Status        InvocationStatus `json:"status"`
	Result        string           `json:"result,omitempty"`
	Error         string           `json:"error,omitempty"`
	Duration      time.Duration    `json:"duration,omitempty"`
	RetryOf       string           `json:"retry_of,omitempty"`
}
