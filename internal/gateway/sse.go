package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/orbit-agents/orbit/pkg/models"
)

// SSESink streams loop events to one HTTP client as Server-Sent Events. Each
// event is one frame: the event name is the stream event type and the data is
// the JSON-encoded event. Writes after the client goes away are dropped
// silently; the loop notices via Closed and aborts the session.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	closed bool
}

// NewSSESink prepares the response for event streaming. It returns an error
// when the writer cannot flush incrementally.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSESink{w: w, flusher: flusher}, nil
}

// Emit writes one SSE frame. A write failure marks the sink closed.
func (s *SSESink) Emit(event models.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		s.closed = true
		return
	}
	s.flusher.Flush()
}

// Closed reports whether the client connection is gone.
func (s *SSESink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close marks the sink closed. The HTTP response itself is finished by the
// handler returning.
func (s *SSESink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
