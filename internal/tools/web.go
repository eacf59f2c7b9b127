package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orbit-agents/orbit/internal/agent"
)

// maxFetchBytes caps the response body read from a fetched URL.
const maxFetchBytes = 512 * 1024

// RegisterWebTool adds the fetch_url tool: a bounded HTTP GET for http and
// https URLs.
func RegisterWebTool(reg *agent.Registry) error {
	client := &http.Client{Timeout: 20 * time.Second}

	return reg.Register(agent.ToolDefinition{
		Name:        "fetch_url",
		Description: "Fetch a URL over HTTP GET and return the response body.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "Absolute http or https URL."}
			},
			"required": ["url"]
		}`),
		Handler: func(ctx context.Context, params json.RawMessage) (string, error) {
			var input struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(params, &input); err != nil {
				return "", fmt.Errorf("invalid parameters: %w", err)
			}
			if !strings.HasPrefix(input.URL, "http://") && !strings.HasPrefix(input.URL, "https://") {
				return "", fmt.Errorf("url must be http or https")
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
			if err != nil {
				return "", fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("User-Agent", "orbit/1.0")

			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("fetch: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return "", fmt.Errorf("fetch: unexpected status %s", resp.Status)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
			if err != nil {
				return "", fmt.Errorf("read body: %w", err)
			}
			if len(body) > maxFetchBytes {
				return string(body[:maxFetchBytes]) + fmt.Sprintf("\n[body truncated at %d bytes]", maxFetchBytes), nil
			}
			return string(body), nil
		},
	})
}
