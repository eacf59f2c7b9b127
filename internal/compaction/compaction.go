// Package compaction bounds a session's message history so context growth
// stays linear in the configured window, not in session length.
package compaction

import (
	"fmt"
	"strings"

	"github.com/orbit-agents/orbit/internal/tokens"
	"github.com/orbit-agents/orbit/pkg/models"
)

// MaxDigestBytes caps the rolling summary that replaces folded history.
const MaxDigestBytes = 4096

// DefaultHistoryLimit is how many verbatim messages a session keeps when the
// configuration does not say otherwise.
const DefaultHistoryLimit = 30

// EstimateCost returns the approximate token count of the messages plus the
// rolling summary, for budget accounting before a model call.
func EstimateCost(summary string, messages []models.Message) int {
	total := tokens.Estimate(summary)
	for _, m := range messages {
		total += tokens.Estimate(m.Content)
		for _, tc := range m.ToolCalls {
			total += tokens.Estimate(tc.Name) + tokens.Estimate(string(tc.Input))
		}
		for _, tr := range m.ToolResults {
			total += tokens.Estimate(tr.Content)
		}
	}
	return total
}

// Bound keeps the most recent limit messages verbatim and folds everything
// older into a digest. The digest is rebuilt from the folded prefix on every
// call, so a message contributes exactly one digest line no matter how many
// times the same history is re-bounded. The returned slice aliases the tail
// of messages; callers that mutate it must copy first. Folding is
// deterministic: the same inputs produce the same digest.
func Bound(messages []models.Message, limit int) (string, []models.Message) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if len(messages) <= limit {
		return "", messages
	}

	folded := messages[:len(messages)-limit]
	kept := messages[len(messages)-limit:]
	return fold(folded), kept
}

// fold renders one line per folded message, then clamps to MaxDigestBytes
// keeping the most recent lines. Old context decays from the front.
func fold(folded []models.Message) string {
	var b strings.Builder
	for _, m := range folded {
		b.WriteString(digestLine(m))
		b.WriteString("\n")
	}
	return clampTail(strings.TrimRight(b.String(), "\n"))
}

func digestLine(m models.Message) string {
	switch {
	case len(m.ToolCalls) > 0:
		names := make([]string, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			names[i] = tc.Name
		}
		return fmt.Sprintf("%s requested tools: %s", m.Role, strings.Join(names, ", "))
	case len(m.ToolResults) > 0:
		parts := make([]string, len(m.ToolResults))
		for i, tr := range m.ToolResults {
			outcome := "ok"
			if tr.IsError {
				outcome = "error"
			}
			parts[i] = fmt.Sprintf("%s (%s)", snippet(tr.Content, 60), outcome)
		}
		return "tool results: " + strings.Join(parts, "; ")
	default:
		return fmt.Sprintf("%s: %s", m.Role, snippet(m.Content, 120))
	}
}

// snippet returns the first line of s truncated to maxBytes.
func snippet(s string, maxBytes int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > maxBytes {
		s = s[:maxBytes] + "..."
	}
	return s
}

// clampTail trims the digest to MaxDigestBytes by dropping whole lines from
// the front, oldest first.
func clampTail(s string) string {
	for len(s) > MaxDigestBytes {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			return s[len(s)-MaxDigestBytes:]
		}
		s = s[i+1:]
	}
	return s
}
