package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/orbit-agents/orbit/internal/agent"
)

const (
	// maxSearchMatches caps the hits reported from one search.
	maxSearchMatches = 100

	// maxSearchFileBytes skips files larger than this; big binaries and
	// logs dominate walk time without adding useful matches.
	maxSearchFileBytes = 1 << 20
)

// RegisterSearchTool adds the search tool: a bounded, case-insensitive
// substring scan over the workspace tree.
func RegisterSearchTool(reg *agent.Registry, cfg Config) error {
	resolver := pathResolver{root: cfg.WorkspaceRoot}

	return reg.Register(agent.ToolDefinition{
		Name:        "search",
		Description: "Search workspace files for a phrase and return matching lines.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Phrase to search for, matched case-insensitively."},
				"path": {"type": "string", "description": "Subdirectory to search. Defaults to the workspace root."}
			},
			"required": ["query"]
		}`),
		Infer: agent.PhraseInference("query"),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var input struct {
				Query string `json:"query"`
				Path  string `json:"path"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return "", fmt.Errorf("invalid parameters: %w", err)
			}
			if strings.TrimSpace(input.Query) == "" {
				return "", fmt.Errorf("query is required")
			}
			if input.Path == "" {
				input.Path = "."
			}
			root, err := resolver.resolve(input.Path)
			if err != nil {
				return "", err
			}

			needle := strings.ToLower(input.Query)
			var matches []string

			err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if d.IsDir() {
					if strings.HasPrefix(d.Name(), ".") && path != root {
						return filepath.SkipDir
					}
					return nil
				}
				if len(matches) >= maxSearchMatches {
					return filepath.SkipAll
				}
				info, err := d.Info()
				if err != nil || info.Size() > maxSearchFileBytes {
					return nil
				}
				rel, err := filepath.Rel(root, path)
				if err != nil {
					rel = path
				}
				matches = append(matches, scanFile(path, rel, needle, maxSearchMatches-len(matches))...)
				return nil
			})
			if err != nil {
				return "", fmt.Errorf("walk workspace: %w", err)
			}

			if len(matches) == 0 {
				return fmt.Sprintf("no matches for %q", input.Query), nil
			}
			header := fmt.Sprintf("%d matches for %q", len(matches), input.Query)
			if len(matches) >= maxSearchMatches {
				header += " (result limit reached)"
			}
			return header + "\n" + strings.Join(matches, "\n"), nil
		},
	})
}

// scanFile returns up to limit "path:line: text" entries for lines containing
// needle. Unreadable or binary-looking files contribute nothing.
func scanFile(path, rel, needle string, limit int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	lineNo := 0
	for scanner.Scan() && len(out) < limit {
		lineNo++
		line := scanner.Text()
		if strings.ContainsRune(line, 0) {
			return out
		}
		if strings.Contains(strings.ToLower(line), needle) {
			trimmed := strings.TrimSpace(line)
			if len(trimmed) > 200 {
				trimmed = trimmed[:200] + "..."
			}
			out = append(out, fmt.Sprintf("%s:%d: %s", rel, lineNo, trimmed))
		}
	}
	return out
}
