package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbit-agents/orbit/internal/observability"
	"github.com/orbit-agents/orbit/pkg/models"
)

// DispatcherConfig configures tool execution for one loop.
type DispatcherConfig struct {
	// Concurrency bounds how many tool handlers run at once. Default: 4.
	Concurrency int

	// PerToolTimeout caps one handler execution. A handler that exceeds it
	// is marked failed with a timeout error, never left pending. Default: 30s.
	PerToolTimeout time.Duration

	// TimeoutRetries is how many times a timed-out invocation is re-executed.
	// Each retry is a new invocation record linked to the attempt it replaces.
	// Default: 1.
	TimeoutRetries int
}

// DefaultDispatcherConfig returns the default dispatch settings.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Concurrency:    4,
		PerToolTimeout: 30 * time.Second,
		TimeoutRetries: 1,
	}
}

// ToolEventCallback reports tool lifecycle transitions back to the loop so it
// can emit stream events. finished=false is tool-started; finished=true
// carries the outcome.
type ToolEventCallback func(toolName string, finished bool, ok bool)

// Dispatcher executes the tool invocations requested by one model turn:
// parameter resolution, bounded-concurrency execution with per-tool
// timeouts, and result summarization. It knows nothing about individual
// tool semantics beyond the registry's contract.
type Dispatcher struct {
	registry *Registry
	resolver *ParamResolver
	config   DispatcherConfig
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, resolver *ParamResolver, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = 30 * time.Second
	}
	if config.TimeoutRetries <= 0 {
		config.TimeoutRetries = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		resolver: resolver,
		config:   config,
		logger:   logger,
	}
}

// BatchOutcome is the result of dispatching one model turn's invocations.
// Invocations and Results are in invocation-request order regardless of
// completion order, so context appends are deterministic. When a timed-out
// invocation was retried, the slot holds the final attempt; its RetryOf field
// links back to the attempt it replaced.
type BatchOutcome struct {
	Invocations []*models.ToolInvocation
	Results     []models.ToolResult

	// CriticalFailure is the first failed invocation (in request order)
	// whose tool is marked critical, or nil. The loop must stop the session
	// when it is set rather than continue with a degraded context.
	CriticalFailure *models.ToolInvocation
}

// Dispatch resolves and executes every invocation in the batch, waiting for
// all of them to reach a terminal status before returning. All invocations
// run even when ctx is already cancelled; side effects in flight should not
// be left half applied. Callers decide whether to use or discard the results.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []models.ToolCall, userText string, emit ToolEventCallback) *BatchOutcome {
	outcome := &BatchOutcome{
		Invocations: make([]*models.ToolInvocation, len(calls)),
		Results:     make([]models.ToolResult, len(calls)),
	}

	sem := make(chan struct{}, d.config.Concurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		inv := &models.ToolInvocation{
			ID:       uuid.NewString(),
			ToolName: call.Name,
			RawInput: call.Input,
			Status:   models.InvocationPending,
		}
		outcome.Invocations[i] = inv

		wg.Add(1)
		go func(idx int, call models.ToolCall, inv *models.ToolInvocation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if emit != nil {
				emit(call.Name, false, false)
			}
			timedOut := d.runOne(ctx, call, userText, inv)
			final := inv
			for attempt := 0; timedOut && attempt < d.config.TimeoutRetries; attempt++ {
				retry := &models.ToolInvocation{
					ID:       uuid.NewString(),
					ToolName: call.Name,
					RawInput: call.Input,
					Status:   models.InvocationPending,
					RetryOf:  final.ID,
				}
				d.logger.Warn("retrying timed-out tool", "tool", call.Name, "invocation_id", retry.ID, "retry_of", final.ID)
				timedOut = d.runOne(ctx, call, userText, retry)
				final = retry
			}
			outcome.Invocations[idx] = final
			outcome.Results[idx] = models.ToolResult{
				ToolCallID: call.ID,
				Content:    final.Result,
				IsError:    final.Status != models.InvocationSucceeded,
			}
			if emit != nil {
				emit(call.Name, true, final.Status == models.InvocationSucceeded)
			}
		}(i, call, inv)
	}

	wg.Wait()

	for _, inv := range outcome.Invocations {
		if inv.Status != models.InvocationFailed {
			continue
		}
		def, err := d.registry.Resolve(inv.ToolName)
		if err == nil && def.Critical {
			outcome.CriticalFailure = inv
			break
		}
	}

	return outcome
}

// runOne takes a single invocation from pending to a terminal status and
// reports whether the failure was the per-tool timeout. The recorded Result
// is always a bounded summary, never the raw handler output.
func (d *Dispatcher) runOne(ctx context.Context, call models.ToolCall, userText string, inv *models.ToolInvocation) bool {
	start := time.Now()
	defer func() {
		inv.Duration = time.Since(start)
		observability.RecordToolExecution(inv.ToolName, string(inv.Status), inv.Duration)
	}()

	def, err := d.registry.Resolve(call.Name)
	if err != nil {
		inv.Status = models.InvocationFailed
		inv.Error = err.Error()
		inv.Result = Summarize(call.Name, nil, "", err)
		d.logger.Warn("tool not supported", "tool", call.Name, "tool_call_id", call.ID)
		return false
	}

	resolved, err := d.resolver.Resolve(def, call.Input, userText)
	if err != nil {
		// Unresolved parameters are a failed, not executed, invocation;
		// the handler is never called with guessed-but-invalid data.
		inv.Status = models.InvocationFailed
		inv.Error = err.Error()
		inv.Result = Summarize(call.Name, nil, "", err)
		d.logger.Warn("tool parameters unresolved", "tool", call.Name, "tool_call_id", call.ID)
		return false
	}
	inv.ResolvedInput = resolved
	inv.Status = models.InvocationRunning

	raw, execErr, timedOut := d.executeWithTimeout(ctx, def, inv.ID, resolved)
	if execErr != nil {
		inv.Status = models.InvocationFailed
		inv.Error = execErr.Error()
		inv.Result = Summarize(call.Name, resolved, raw, execErr)
		if timedOut {
			d.logger.Warn("tool timed out", "tool", call.Name, "tool_call_id", call.ID, "timeout", d.config.PerToolTimeout)
		} else {
			d.logger.Warn("tool failed", "tool", call.Name, "tool_call_id", call.ID, "error", execErr)
		}
		return timedOut
	}

	inv.Status = models.InvocationSucceeded
	inv.Result = Summarize(call.Name, resolved, raw, nil)
	return false
}

// executeWithTimeout runs the handler in its own goroutine so a stuck tool
// cannot wedge the dispatcher. On timeout the invocation fails; the handler
// goroutine is left to finish and its late result is discarded.
func (d *Dispatcher) executeWithTimeout(ctx context.Context, def *ToolDefinition, invocationID string, params []byte) (raw string, err error, timedOut bool) {
	toolCtx, cancel := context.WithTimeout(ctx, d.config.PerToolTimeout)
	defer cancel()

	toolCtx, span := observability.StartToolSpan(toolCtx, def.Name, invocationID)
	defer span.End()

	type handlerResult struct {
		raw string
		err error
	}
	done := make(chan handlerResult, 1)

	go func() {
		raw, err := def.Handler(toolCtx, params)
		select {
		case done <- handlerResult{raw: raw, err: err}:
		default:
			d.logger.Warn("tool finished after timeout, result discarded",
				"tool", def.Name, "invocation_id", invocationID)
		}
	}()

	select {
	case <-toolCtx.Done():
		if errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("tool execution timed out after %v", d.config.PerToolTimeout), true
		}
		return "", fmt.Errorf("tool execution canceled: %w", toolCtx.Err()), false
	case res := <-done:
		return res.raw, res.err, false
	}
}
