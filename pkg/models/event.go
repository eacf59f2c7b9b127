package models

import "time"

// StreamEventType identifies the kind of event pushed to a streaming client.
type StreamEventType string

const (
	// EventTurnStarted opens one model-call-then-tool-dispatch cycle.
	EventTurnStarted StreamEventType = "turn-started"

	// EventTextFragment carries an incremental piece of model output.
	EventTextFragment StreamEventType = "text-fragment"

	// EventToolStarted and EventToolFinished bracket one tool invocation.
	EventToolStarted  StreamEventType = "tool-started"
	EventToolFinished StreamEventType = "tool-finished"

	// EventTurnCompleted closes the cycle opened by EventTurnStarted.
	EventTurnCompleted StreamEventType = "turn-completed"

	// EventSessionCompleted and EventSessionAborted are terminal; a stream
	// ends with exactly one of them.
	EventSessionCompleted StreamEventType = "session-completed"
	EventSessionAborted   StreamEventType = "session-aborted"
)

// StreamEvent is one entry in the ordered, append-only event stream for a
// session. Sequence is monotonic within a stream.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Sequence  uint64          `json:"seq"`
	SessionID string          `json:"session_id,omitempty"`
	Iteration int             `json:"iteration,omitempty"`

	// Text is set for text-fragment events.
	Text string `json:"text,omitempty"`

	// Tool and OK are set for tool lifecycle events.
	Tool string `json:"tool,omitempty"`
	OK   bool   `json:"ok,omitempty"`

	// Reason is the human-readable abort reason on session-aborted.
	Reason string `json:"reason,omitempty"`

	Time time.Time `json:"time"`
}

// TerminalEvent reports whether the event ends the stream.
func (e StreamEvent) TerminalEvent() bool {
	return e.Type == EventSessionCompleted || e.Type == EventSessionAborted
}
