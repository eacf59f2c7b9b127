package agent

import (
	"sync"

	"github.com/orbit-agents/orbit/pkg/models"
)

// EventSink receives the ordered event stream for one session run. Emit must
// never block the loop: a sink that cannot keep up drops events rather than
// stalling orchestration. Closed reports whether the consumer has gone away;
// the loop polls it to detect client disconnects.
type EventSink interface {
	Emit(event models.StreamEvent)
	Closed() bool
	Close()
}

// ChanSink delivers events over a buffered channel. Events are dropped
// silently when the buffer is full or the sink is closed.
type ChanSink struct {
	ch     chan models.StreamEvent
	mu     sync.Mutex
	closed bool
}

// NewChanSink creates a channel sink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChanSink{ch: make(chan models.StreamEvent, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChanSink) Events() <-chan models.StreamEvent {
	return s.ch
}

// Emit enqueues the event, dropping it when the buffer is full or the sink
// is closed.
func (s *ChanSink) Emit(event models.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	default:
	}
}

// Closed reports whether Close has been called.
func (s *ChanSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close closes the underlying channel. Safe to call more than once.
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// MultiSink fans events out to several sinks. It reports closed only when
// every child is closed, so one slow or departed consumer does not end the
// run for the others.
type MultiSink struct {
	sinks []EventSink
}

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(event models.StreamEvent) {
	for _, s := range m.sinks {
		s.Emit(event)
	}
}

func (m *MultiSink) Closed() bool {
	for _, s := range m.sinks {
		if !s.Closed() {
			return false
		}
	}
	return len(m.sinks) > 0
}

func (m *MultiSink) Close() {
	for _, s := range m.sinks {
		s.Close()
	}
}

// NopSink discards everything and never reports closed. Used when a session
// runs without an attached consumer.
type NopSink struct{}

func (NopSink) Emit(models.StreamEvent) {}
func (NopSink) Closed() bool            { return false }
func (NopSink) Close()                  {}

// CallbackSink invokes a function per event. Emits after Close are dropped.
type CallbackSink struct {
	fn     func(models.StreamEvent)
	mu     sync.Mutex
	closed bool
}

// NewCallbackSink wraps fn as a sink.
func NewCallbackSink(fn func(models.StreamEvent)) *CallbackSink {
	return &CallbackSink{fn: fn}
}

func (s *CallbackSink) Emit(event models.StreamEvent) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.fn == nil {
		return
	}
	s.fn(event)
}

func (s *CallbackSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *CallbackSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
