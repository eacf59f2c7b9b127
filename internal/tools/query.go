package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/orbit-agents/orbit/internal/agent"
	"github.com/orbit-agents/orbit/internal/sessions"
)

// RegisterSessionQueryTool adds session_info: it lets the model report on a
// session's own progress (state, iteration and spend counters, summary)
// without guessing from conversation text.
func RegisterSessionQueryTool(reg *agent.Registry, store sessions.Store) error {
	return reg.Register(agent.ToolDefinition{
		Name:        "session_info",
		Description: "Look up a session's state, iteration count, and token spend.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"session_id": {"type": "string", "description": "Session identifier to inspect."}
			},
			"required": ["session_id"]
		}`),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var input struct {
				SessionID string `json:"session_id"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return "", fmt.Errorf("invalid parameters: %w", err)
			}

			session, err := store.Get(ctx, input.SessionID)
			if err != nil {
				return "", fmt.Errorf("look up session: %w", err)
			}
			history, err := store.History(ctx, session.ID, 0)
			if err != nil {
				return "", fmt.Errorf("load history: %w", err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "session %s\n", session.ID)
			fmt.Fprintf(&b, "state: %s\n", session.State)
			if session.AbortReason != "" {
				fmt.Fprintf(&b, "abort reason: %s\n", session.AbortReason)
			}
			fmt.Fprintf(&b, "iterations: %d\n", session.Iterations)
			fmt.Fprintf(&b, "cost tokens: %d\n", session.CostTokens)
			fmt.Fprintf(&b, "messages: %d\n", len(history))
			if session.Summary != "" {
				fmt.Fprintf(&b, "summary: %s", session.Summary)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	})
}

// RegisterAll wires every built-in tool into the registry.
func RegisterAll(reg *agent.Registry, cfg Config, store sessions.Store) error {
	if err := RegisterFileTools(reg, cfg); err != nil {
		return err
	}
	if err := RegisterSearchTool(reg, cfg); err != nil {
		return err
	}
	if err := RegisterShellTool(reg, cfg); err != nil {
		return err
	}
	if err := RegisterWebTool(reg); err != nil {
		return err
	}
	return RegisterSessionQueryTool(reg, store)
}
