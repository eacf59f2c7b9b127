package agent

import (
	"errors"
	"fmt"

	"github.com/orbit-agents/orbit/pkg/models"
)

var (
	// ErrToolNotSupported is returned when the model requests a tool name
	// that was never registered. Unknown tools are never a silent no-op.
	ErrToolNotSupported = errors.New("tool not supported")

	// ErrParametersUnresolved is returned when a tool's parameters neither
	// validate as supplied nor can be inferred from the conversation text.
	ErrParametersUnresolved = errors.New("tool parameters unresolved")

	// ErrMaxIterations is returned when the loop reaches its iteration ceiling.
	ErrMaxIterations = errors.New("max iterations reached")

	// ErrBudgetExceeded is returned when the estimated cumulative cost for a
	// session exceeds its configured ceiling.
	ErrBudgetExceeded = errors.New("cost budget exceeded")

	// ErrUpstreamUnavailable is returned when the model provider keeps
	// failing after bounded retries.
	ErrUpstreamUnavailable = errors.New("model provider unavailable")

	// ErrClientDisconnected is returned when the streaming client went away
	// mid-session and the loop stopped rather than spend budget unseen.
	ErrClientDisconnected = errors.New("client disconnected")

	// ErrCriticalToolFailed is returned when a tool marked critical failed
	// and the session cannot safely continue.
	ErrCriticalToolFailed = errors.New("critical tool failed")

	// ErrNoProvider is returned when the loop is constructed without a
	// model provider.
	ErrNoProvider = errors.New("no model provider configured")
)

// LoopError wraps a failure with the loop state and iteration it occurred in.
type LoopError struct {
	State     models.SessionState
	Iteration int
	Cause     error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("loop error in state %s (iteration %d): %v", e.State, e.Iteration, e.Cause)
}

func (e *LoopError) Unwrap() error {
	return e.Cause
}
