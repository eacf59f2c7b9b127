// Package tools provides the built-in tool set registered with the engine.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config scopes the built-in tools.
type Config struct {
	// WorkspaceRoot is the directory file and search tools are confined to.
	WorkspaceRoot string

	// ShellAllowlist names the only binaries the shell tool will run.
	ShellAllowlist []string
}

// pathResolver resolves and validates workspace-relative paths.
type pathResolver struct {
	root string
}

// resolve returns an absolute, cleaned path confined to the workspace root.
// Absolute inputs are accepted but must still land inside the root.
func (r pathResolver) resolve(path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	root := strings.TrimSpace(r.root)
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	var target string
	if filepath.IsAbs(clean) {
		target = filepath.Clean(clean)
	} else {
		target = filepath.Join(rootAbs, clean)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes workspace")
	}
	return targetAbs, nil
}
