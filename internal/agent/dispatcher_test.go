package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orbit-agents/orbit/pkg/models"
)

func newTestDispatcher(t *testing.T, reg *Registry, config DispatcherConfig) *Dispatcher {
	t.Helper()
	return NewDispatcher(reg, NewParamResolver(), config, nil)
}

func TestDispatchExecutesAndSummarizes(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolDefinition{
		Name:    "greet",
		Schema:  json.RawMessage(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) { return "hello world", nil },
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := newTestDispatcher(t, reg, DispatcherConfig{})

	calls := []models.ToolCall{{ID: "c1", Name: "greet", Input: json.RawMessage(`{"name":"ada"}`)}}
	outcome := d.Dispatch(context.Background(), calls, "", nil)

	if len(outcome.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(outcome.Results))
	}
	res := outcome.Results[0]
	if res.ToolCallID != "c1" || res.IsError {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasPrefix(res.Content, "greet: ok") {
		t.Errorf("result content %q is not a summary", res.Content)
	}
	if outcome.Invocations[0].Status != models.InvocationSucceeded {
		t.Errorf("status = %s", outcome.Invocations[0].Status)
	}
	if outcome.CriticalFailure != nil {
		t.Errorf("unexpected critical failure: %+v", outcome.CriticalFailure)
	}
}

func TestDispatchUnknownToolFailsWithoutExecuting(t *testing.T) {
	reg := NewRegistry()
	d := newTestDispatcher(t, reg, DispatcherConfig{})

	outcome := d.Dispatch(context.Background(), []models.ToolCall{{ID: "c1", Name: "nope"}}, "", nil)
	inv := outcome.Invocations[0]
	if inv.Status != models.InvocationFailed {
		t.Errorf("status = %s, want failed", inv.Status)
	}
	if !outcome.Results[0].IsError {
		t.Error("result not marked as error")
	}
}

func TestDispatchUnresolvedParametersSkipHandler(t *testing.T) {
	reg := NewRegistry()
	executed := false
	if err := reg.Register(ToolDefinition{
		Name:   "strict",
		Schema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			executed = true
			return "", nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := newTestDispatcher(t, reg, DispatcherConfig{})

	outcome := d.Dispatch(context.Background(), []models.ToolCall{{ID: "c1", Name: "strict"}}, "no hints here", nil)
	if executed {
		t.Error("handler ran despite unresolved parameters")
	}
	if outcome.Invocations[0].Status != models.InvocationFailed {
		t.Errorf("status = %s, want failed", outcome.Invocations[0].Status)
	}
}

func TestDispatchConcurrencyBound(t *testing.T) {
	reg := NewRegistry()
	var active, peak int32
	if err := reg.Register(ToolDefinition{
		Name: "slow",
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return "done", nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := newTestDispatcher(t, reg, DispatcherConfig{Concurrency: 2})

	calls := make([]models.ToolCall, 6)
	for i := range calls {
		calls[i] = models.ToolCall{ID: "c", Name: "slow", Input: json.RawMessage(`{}`)}
	}
	d.Dispatch(context.Background(), calls, "", nil)

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", got)
	}
}

func TestDispatchPerToolTimeout(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolDefinition{
		Name: "hang",
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			<-ctx.Done()
			time.Sleep(5 * time.Millisecond)
			return "late", nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := newTestDispatcher(t, reg, DispatcherConfig{PerToolTimeout: 20 * time.Millisecond})

	start := time.Now()
	outcome := d.Dispatch(context.Background(), []models.ToolCall{{ID: "c1", Name: "hang", Input: json.RawMessage(`{}`)}}, "", nil)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("dispatch blocked for %v on a hung tool", elapsed)
	}

	inv := outcome.Invocations[0]
	if inv.Status != models.InvocationFailed {
		t.Errorf("status = %s, want failed", inv.Status)
	}
	if !strings.Contains(inv.Error, "timed out") {
		t.Errorf("error = %q, want timeout", inv.Error)
	}
	if inv.RetryOf == "" {
		t.Error("final invocation does not link to the timed-out attempt")
	}
}

func TestDispatchRetriesTimedOutInvocation(t *testing.T) {
	reg := NewRegistry()
	var attempts int32
	if err := reg.Register(ToolDefinition{
		Name: "flaky",
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "second attempt", nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := newTestDispatcher(t, reg, DispatcherConfig{PerToolTimeout: 20 * time.Millisecond, TimeoutRetries: 1})

	outcome := d.Dispatch(context.Background(), []models.ToolCall{{ID: "c1", Name: "flaky", Input: json.RawMessage(`{}`)}}, "", nil)

	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
	inv := outcome.Invocations[0]
	if inv.Status != models.InvocationSucceeded {
		t.Errorf("status = %s, want succeeded", inv.Status)
	}
	if inv.RetryOf == "" {
		t.Error("retry invocation does not link to the original")
	}
	if outcome.Results[0].IsError {
		t.Errorf("result = %+v, want success", outcome.Results[0])
	}
}

func TestDispatchCriticalFailure(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolDefinition{
		Name:     "vital",
		Critical: true,
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			return "", errors.New("boom")
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(ToolDefinition{
		Name: "optional",
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			return "", errors.New("also failed")
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := newTestDispatcher(t, reg, DispatcherConfig{})

	outcome := d.Dispatch(context.Background(), []models.ToolCall{
		{ID: "c1", Name: "optional", Input: json.RawMessage(`{}`)},
		{ID: "c2", Name: "vital", Input: json.RawMessage(`{}`)},
	}, "", nil)

	if outcome.CriticalFailure == nil {
		t.Fatal("critical failure not reported")
	}
	if outcome.CriticalFailure.ToolName != "vital" {
		t.Errorf("CriticalFailure.ToolName = %q, want vital", outcome.CriticalFailure.ToolName)
	}
}

func TestDispatchEmitsLifecycleCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ToolDefinition{
		Name:    "ok",
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) { return "fine", nil },
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d := newTestDispatcher(t, reg, DispatcherConfig{})

	var mu sync.Mutex
	type event struct {
		finished bool
		ok       bool
	}
	var events []event
	d.Dispatch(context.Background(), []models.ToolCall{{ID: "c1", Name: "ok", Input: json.RawMessage(`{}`)}}, "",
		func(toolName string, finished, ok bool) {
			mu.Lock()
			events = append(events, event{finished: finished, ok: ok})
			mu.Unlock()
		})

	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want started+finished", len(events))
	}
	if events[0].finished || !events[1].finished || !events[1].ok {
		t.Errorf("events = %+v", events)
	}
}
