package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/orbit-agents/orbit/internal/agent"
)

// maxShellOutputBytes caps combined stdout and stderr captured per command.
const maxShellOutputBytes = 64 * 1024

// RegisterShellTool adds the shell tool. Commands are tokenized with shell
// word-splitting rules but executed directly, never through a shell, and only
// allowlisted binaries run. The tool is critical: a command the engine chose
// to run and could not is not safe to paper over.
func RegisterShellTool(reg *agent.Registry, cfg Config) error {
	allowed := make(map[string]bool, len(cfg.ShellAllowlist))
	for _, name := range cfg.ShellAllowlist {
		allowed[name] = true
	}

	return reg.Register(agent.ToolDefinition{
		Name:        "shell",
		Description: "Run an allowlisted command in the workspace and return its output.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "Command line to execute."}
			},
			"required": ["command"]
		}`),
		Critical: true,
		Infer:    agent.CommandInference("command"),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var input struct {
				Command string `json:"command"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return "", fmt.Errorf("invalid parameters: %w", err)
			}

			parts, err := shlex.Split(input.Command)
			if err != nil {
				return "", fmt.Errorf("parse command: %w", err)
			}
			if len(parts) == 0 {
				return "", fmt.Errorf("command is required")
			}
			if !allowed[parts[0]] {
				return "", fmt.Errorf("command %q is not allowlisted", parts[0])
			}

			cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
			cmd.Dir = cfg.WorkspaceRoot

			var output bytes.Buffer
			cmd.Stdout = &output
			cmd.Stderr = &output

			runErr := cmd.Run()
			text := output.String()
			if len(text) > maxShellOutputBytes {
				text = text[:maxShellOutputBytes] + fmt.Sprintf("\n[output truncated at %d bytes]", maxShellOutputBytes)
			}
			if runErr != nil {
				return "", fmt.Errorf("command failed: %w\n%s", runErr, strings.TrimSpace(text))
			}
			if strings.TrimSpace(text) == "" {
				return "(no output)", nil
			}
			return text, nil
		},
	})
}
