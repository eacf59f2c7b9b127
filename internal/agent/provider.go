package agent

import (
	"context"
	"encoding/json"

	"github.com/orbit-agents/orbit/pkg/models"
)

// ModelProvider is the streaming model-call collaborator the loop depends on.
// Implementations convert between the engine's message format and a concrete
// provider API, and deliver output incrementally over a channel.
//
// The orchestrator treats the fragment stream as untrusted: tool-call
// argument fragments may arrive partial, interleaved, or with inconsistent
// indices, and the loop's fragment assembler recovers rather than trusting
// the transport's bookkeeping.
type ModelProvider interface {
	// Name returns a stable lowercase identifier used for routing and logging.
	Name() string

	// Complete sends one completion request and returns a channel of chunks.
	// The channel is closed when the stream ends. Errors during streaming
	// are delivered as chunks, not return values.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
}

// CompletionRequest is one model call: the system prompt, the bounded message
// history, and the schemas of every tool the model may request.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []CompletionMessage
	Tools     []ToolSpec
	MaxTokens int
}

// CompletionMessage is one history entry in provider-neutral form.
type CompletionMessage struct {
	Role        string
	Content     string
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResult
}

// ToolSpec is the static descriptor handed to the model for one tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// CompletionChunk is one increment of a streaming model response. Exactly one
// of Text, ToolFragment, Error is meaningful per chunk; Done marks the end of
// the stream and may carry token usage.
type CompletionChunk struct {
	Text         string
	ToolFragment *ToolCallFragment

	Done         bool
	InputTokens  int
	OutputTokens int

	Error error
}

// ToolCallFragment is one piece of a streamed tool call, passed through from
// the provider transport as-is. ID and Name are set when the transport
// delivered them in this piece; Args is a partial JSON argument string to be
// concatenated with the call's other fragments.
type ToolCallFragment struct {
	Index int
	ID    string
	Name  string
	Args  string
}
