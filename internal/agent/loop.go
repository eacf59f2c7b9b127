package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/orbit-agents/orbit/internal/backoff"
	"github.com/orbit-agents/orbit/internal/compaction"
	"github.com/orbit-agents/orbit/internal/observability"
	"github.com/orbit-agents/orbit/internal/sessions"
	"github.com/orbit-agents/orbit/internal/tokens"
	"github.com/orbit-agents/orbit/pkg/models"
)

// LoopConfig parameterizes one orchestration loop.
type LoopConfig struct {
	Model        string
	SystemPrompt string

	// MaxIterations caps model-call-then-tool-dispatch cycles per run.
	MaxIterations int

	// MaxCostTokens caps the cumulative estimated token spend per session.
	MaxCostTokens int

	// MaxTokens is the per-completion output ceiling passed to the provider.
	MaxTokens int

	// HistoryLimit is how many verbatim messages survive compaction.
	HistoryLimit int

	// RetryAttempts bounds model-call retries per iteration.
	RetryAttempts int
	RetryPolicy   backoff.Policy
}

// DefaultLoopConfig returns the default loop settings.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: 5,
		MaxCostTokens: 50000,
		MaxTokens:     4096,
		HistoryLimit:  compaction.DefaultHistoryLimit,
		RetryAttempts: 3,
		RetryPolicy:   backoff.DefaultPolicy(),
	}
}

// Loop is the orchestration state machine for one or more sessions. It is the
// only component that mutates session state: gateway handlers hand it a
// session and a user message and consume the event stream it produces.
//
// A session moves idle -> awaiting_model -> executing_tools -> awaiting_model
// ... until it lands in completed or aborted. Both budget ceilings are
// checked before every transition into awaiting_model, so a model call is
// never started on a session that has already spent its allowance.
type Loop struct {
	provider   ModelProvider
	dispatcher *Dispatcher
	store      sessions.Store
	config     LoopConfig
	logger     *slog.Logger
}

// NewLoop wires the loop from its collaborators.
func NewLoop(provider ModelProvider, dispatcher *Dispatcher, store sessions.Store, config LoopConfig, logger *slog.Logger) *Loop {
	if config.MaxIterations <= 0 {
		config.MaxIterations = 5
	}
	if config.MaxCostTokens <= 0 {
		config.MaxCostTokens = 50000
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = compaction.DefaultHistoryLimit
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryPolicy == (backoff.Policy{}) {
		config.RetryPolicy = backoff.DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		provider:   provider,
		dispatcher: dispatcher,
		store:      store,
		config:     config,
		logger:     logger,
	}
}

// run carries the per-invocation state of one Run call. The sequence counter
// is atomic: tool lifecycle events are emitted from dispatcher worker
// goroutines while the loop goroutine emits everything else.
type run struct {
	session  *models.Session
	userText string
	sink     EventSink
	seq      atomic.Uint64
}

// Run processes one user message on the session, driving the loop until the
// session reaches a terminal state. Events stream to sink in order; the
// stream always ends with exactly one terminal event. The returned session
// reflects the final persisted snapshot. The error is non-nil only for abort
// outcomes and wiring failures; a clean completion returns nil.
func (l *Loop) Run(ctx context.Context, session *models.Session, userText string, sink EventSink) (*models.Session, error) {
	if l.provider == nil {
		return session, ErrNoProvider
	}
	if sink == nil {
		sink = NopSink{}
	}
	if session.State.Terminal() {
		return session, fmt.Errorf("session %s is already %s", session.ID, session.State)
	}

	r := &run{session: session, userText: userText, sink: sink}

	userMsg := &models.Message{Role: models.RoleUser, Content: userText}
	if err := l.store.AppendMessage(ctx, session.ID, userMsg); err != nil {
		return session, fmt.Errorf("append user message: %w", err)
	}

	for {
		if r.sink.Closed() {
			return l.abort(ctx, r, "client disconnected", ErrClientDisconnected)
		}
		if session.Iterations >= l.config.MaxIterations {
			return l.abort(ctx, r, fmt.Sprintf("iteration ceiling of %d reached", l.config.MaxIterations), ErrMaxIterations)
		}
		if session.CostTokens >= l.config.MaxCostTokens {
			return l.abort(ctx, r, fmt.Sprintf("cost ceiling of %d tokens reached", l.config.MaxCostTokens), ErrBudgetExceeded)
		}

		session.State = models.StateAwaitingModel
		l.persist(ctx, session)

		iteration := session.Iterations + 1
		l.emit(r, models.StreamEvent{Type: models.EventTurnStarted, Iteration: iteration})

		text, calls, usage, err := l.callModel(ctx, r, iteration)
		if err != nil {
			return l.abort(ctx, r, "model provider unavailable", err)
		}

		session.Iterations = iteration
		session.CostTokens += usage
		observability.RecordIteration()

		assistantMsg := &models.Message{
			Role:      models.RoleAssistant,
			Content:   text,
			ToolCalls: calls,
		}
		if err := l.store.AppendMessage(ctx, session.ID, assistantMsg); err != nil {
			l.logger.Error("append assistant message failed", "session_id", session.ID, "error", err)
		}

		if len(calls) == 0 {
			l.emit(r, models.StreamEvent{Type: models.EventTurnCompleted, Iteration: iteration})
			session.State = models.StateCompleted
			l.persist(ctx, session)
			l.emit(r, models.StreamEvent{Type: models.EventSessionCompleted})
			return session, nil
		}

		session.State = models.StateExecutingTools
		l.persist(ctx, session)

		outcome := l.dispatcher.Dispatch(ctx, calls, userText, func(toolName string, finished bool, ok bool) {
			if finished {
				l.emit(r, models.StreamEvent{Type: models.EventToolFinished, Iteration: iteration, Tool: toolName, OK: ok})
				return
			}
			l.emit(r, models.StreamEvent{Type: models.EventToolStarted, Iteration: iteration, Tool: toolName})
		})

		if r.sink.Closed() {
			// Tool side effects completed, but the consumer is gone; their
			// results are not fed back into the conversation.
			return l.abort(ctx, r, "client disconnected", ErrClientDisconnected)
		}

		toolMsg := &models.Message{
			Role:        models.RoleTool,
			ToolResults: outcome.Results,
		}
		if err := l.store.AppendMessage(ctx, session.ID, toolMsg); err != nil {
			l.logger.Error("append tool results failed", "session_id", session.ID, "error", err)
		}
		session.CostTokens += resultsCost(outcome.Results)

		l.emit(r, models.StreamEvent{Type: models.EventTurnCompleted, Iteration: iteration})

		if outcome.CriticalFailure != nil {
			reason := fmt.Sprintf("critical tool %s failed: %s", outcome.CriticalFailure.ToolName, outcome.CriticalFailure.Error)
			return l.abort(ctx, r, reason, ErrCriticalToolFailed)
		}
	}
}

// callModel performs one retried, streaming model call. Text fragments are
// emitted live as they arrive; tool-call fragments are assembled and returned
// once the stream ends. The returned usage is the provider-reported token
// count when available, otherwise an estimate of request plus response.
func (l *Loop) callModel(ctx context.Context, r *run, iteration int) (string, []models.ToolCall, int, error) {
	req, reqCost, err := l.buildRequest(ctx, r.session)
	if err != nil {
		return "", nil, 0, err
	}

	ctx, span := observability.StartModelSpan(ctx, r.session.ID, iteration)
	defer span.End()

	type turn struct {
		text  string
		calls []models.ToolCall
		usage int
	}

	// emitted counts assistant-text bytes already streamed to the sink across
	// attempts. A retried stream replays from the start; text the client has
	// seen is not sent again.
	emitted := 0

	result, err := backoff.Retry(ctx, l.config.RetryPolicy, l.config.RetryAttempts, func(attempt int) (turn, error) {
		if attempt > 1 {
			l.logger.Warn("retrying model call", "session_id", r.session.ID, "attempt", attempt)
		}
		chunks, err := l.provider.Complete(ctx, req)
		if err != nil {
			return turn{}, err
		}

		var text strings.Builder
		assembler := newFragmentAssembler()
		reported := 0
		for chunk := range chunks {
			switch {
			case chunk.Error != nil:
				return turn{}, chunk.Error
			case chunk.Text != "":
				start := text.Len()
				text.WriteString(chunk.Text)
				if end := text.Len(); end > emitted {
					fresh := chunk.Text
					if start < emitted {
						fresh = chunk.Text[emitted-start:]
					}
					l.emit(r, models.StreamEvent{Type: models.EventTextFragment, Iteration: iteration, Text: fresh})
					emitted = end
				}
			case chunk.ToolFragment != nil:
				f := chunk.ToolFragment
				assembler.add(f.Index, f.ID, f.Name, f.Args)
			}
			if chunk.Done && chunk.InputTokens+chunk.OutputTokens > 0 {
				reported = chunk.InputTokens + chunk.OutputTokens
			}
		}

		usage := reported
		if usage == 0 {
			usage = reqCost + tokens.Estimate(text.String())
		}
		return turn{text: text.String(), calls: assembler.calls(), usage: usage}, nil
	})
	if err != nil {
		return "", nil, 0, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return result.text, result.calls, result.usage, nil
}

// buildRequest assembles the provider request. History arrives from the
// sessions layer already bounded; the loop never sees more than the verbatim
// window plus the digest.
func (l *Loop) buildRequest(ctx context.Context, session *models.Session) (*CompletionRequest, int, error) {
	summary, bounded, err := sessions.BoundedHistory(ctx, l.store, session, l.config.HistoryLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("load history: %w", err)
	}

	system := l.config.SystemPrompt
	if summary != "" {
		if system != "" {
			system += "\n\n"
		}
		system += "Earlier conversation, summarized:\n" + summary
	}

	messages := make([]CompletionMessage, 0, len(bounded))
	for _, msg := range bounded {
		messages = append(messages, CompletionMessage{
			Role:        string(msg.Role),
			Content:     msg.Content,
			ToolCalls:   msg.ToolCalls,
			ToolResults: msg.ToolResults,
		})
	}

	req := &CompletionRequest{
		Model:     l.config.Model,
		System:    system,
		Messages:  messages,
		Tools:     l.dispatcher.registry.Specs(),
		MaxTokens: l.config.MaxTokens,
	}
	return req, compaction.EstimateCost(summary, bounded), nil
}

// abort drives the session into the aborted state: a synthesized closing
// message is appended so the transcript explains the stop, the snapshot is
// persisted, and the stream ends with session-aborted.
func (l *Loop) abort(ctx context.Context, r *run, reason string, cause error) (*models.Session, error) {
	session := r.session
	session.State = models.StateAborted
	session.AbortReason = reason

	closing := &models.Message{
		Role:    models.RoleAssistant,
		Content: "Session stopped: " + reason + ".",
	}
	if err := l.store.AppendMessage(ctx, session.ID, closing); err != nil {
		l.logger.Error("append closing message failed", "session_id", session.ID, "error", err)
	}
	l.persist(ctx, session)

	observability.RecordAbort(abortLabel(cause))
	l.logger.Warn("session aborted", "session_id", session.ID, "reason", reason, "iterations", session.Iterations, "cost_tokens", session.CostTokens)
	l.emit(r, models.StreamEvent{Type: models.EventSessionAborted, Reason: reason})

	return session, &LoopError{State: models.StateAborted, Iteration: session.Iterations, Cause: cause}
}

func (l *Loop) persist(ctx context.Context, session *models.Session) {
	if err := l.store.Update(ctx, session); err != nil {
		l.logger.Error("persist session failed", "session_id", session.ID, "state", session.State, "error", err)
	}
}

func (l *Loop) emit(r *run, event models.StreamEvent) {
	event.Sequence = r.seq.Add(1)
	event.SessionID = r.session.ID
	event.Time = time.Now()
	r.sink.Emit(event)
}

func resultsCost(results []models.ToolResult) int {
	total := 0
	for _, res := range results {
		total += tokens.Estimate(res.Content)
	}
	return total
}

// abortLabel collapses abort causes into a small metric label set.
func abortLabel(cause error) string {
	switch {
	case cause == nil:
		return "unknown"
	case errors.Is(cause, ErrMaxIterations):
		return "max_iterations"
	case errors.Is(cause, ErrBudgetExceeded):
		return "budget"
	case errors.Is(cause, ErrClientDisconnected):
		return "disconnect"
	case errors.Is(cause, ErrCriticalToolFailed):
		return "critical_tool"
	case errors.Is(cause, ErrUpstreamUnavailable):
		return "upstream"
	default:
		return "other"
	}
}
