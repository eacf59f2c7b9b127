package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/orbit-agents/orbit/internal/agent"
)

// maxReadBytes caps what read_file returns; the dispatcher's summarizer
// bounds context growth, but shipping a multi-megabyte blob to it first is
// wasted work.
const maxReadBytes = 256 * 1024

// RegisterFileTools adds read_file, write_file, and list_files to the registry.
func RegisterFileTools(reg *agent.Registry, cfg Config) error {
	resolver := pathResolver{root: cfg.WorkspaceRoot}

	if err := reg.Register(agent.ToolDefinition{
		Name:        "read_file",
		Description: "Read a text file from the workspace.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Path relative to the workspace root."}
			},
			"required": ["path"]
		}`),
		Infer: agent.PathInference("path"),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var input struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return "", fmt.Errorf("invalid parameters: %w", err)
			}
			resolved, err := resolver.resolve(input.Path)
			if err != nil {
				return "", err
			}
			info, err := os.Stat(resolved)
			if err != nil {
				return "", fmt.Errorf("stat file: %w", err)
			}
			if info.IsDir() {
				return "", fmt.Errorf("%s is a directory", input.Path)
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return "", fmt.Errorf("read file: %w", err)
			}
			if len(data) > maxReadBytes {
				return string(data[:maxReadBytes]) + fmt.Sprintf("\n[file truncated at %d bytes]", maxReadBytes), nil
			}
			return string(data), nil
		},
	}); err != nil {
		return err
	}

	if err := reg.Register(agent.ToolDefinition{
		Name:        "write_file",
		Description: "Create or overwrite a text file in the workspace.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Path relative to the workspace root."},
				"content": {"type": "string", "description": "Full file content to write."}
			},
			"required": ["path"]
		}`),
		Infer: agent.PathInference("path"),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var input struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return "", fmt.Errorf("invalid parameters: %w", err)
			}
			resolved, err := resolver.resolve(input.Path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
				return "", fmt.Errorf("create parent directory: %w", err)
			}
			if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
				return "", fmt.Errorf("write file: %w", err)
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(input.Content), input.Path), nil
		},
	}); err != nil {
		return err
	}

	return reg.Register(agent.ToolDefinition{
		Name:        "list_files",
		Description: "List files under a workspace directory.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Directory relative to the workspace root. Defaults to the root."}
			}
		}`),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var input struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return "", fmt.Errorf("invalid parameters: %w", err)
			}
			if input.Path == "" {
				input.Path = "."
			}
			resolved, err := resolver.resolve(input.Path)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(resolved)
			if err != nil {
				return "", fmt.Errorf("read directory: %w", err)
			}
			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				name := entry.Name()
				if entry.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			if len(names) == 0 {
				return "(empty directory)", nil
			}
			return strings.Join(names, "\n"), nil
		},
	})
}
