package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Summary size ceilings. These bound what a single tool result can add to a
// session's context regardless of how large the raw result is; this is the
// single mechanism preventing context growth from tool output.
const (
	MaxSummaryBytes = 2048
	MaxSummaryLines = 8
)

// Summarize produces a deterministic, bounded digest of one raw tool result.
// The digest opens with a status line (outcome, tool name, payload shape) and
// carries a head/tail excerpt of the raw content. It is pure: no side
// effects, same inputs produce the same output, and the output never exceeds
// MaxSummaryBytes.
func Summarize(toolName string, params json.RawMessage, raw string, execErr error) string {
	var b strings.Builder

	if execErr != nil {
		b.WriteString(fmt.Sprintf("%s: error: %s", toolName, firstLine(execErr.Error())))
		if raw != "" {
			b.WriteString("\n")
			b.WriteString(excerpt(raw, MaxSummaryBytes-b.Len()-64, MaxSummaryLines-1))
		}
		return clamp(b.String())
	}

	b.WriteString(fmt.Sprintf("%s: ok", toolName))
	if shape := payloadShape(raw); shape != "" {
		b.WriteString(" (" + shape + ")")
	}
	if raw != "" {
		b.WriteString("\n")
		b.WriteString(excerpt(raw, MaxSummaryBytes-b.Len()-64, MaxSummaryLines-1))
	}
	return clamp(b.String())
}

// payloadShape describes structured results by size instead of dumping them:
// a JSON array becomes "42 items", an object "7 fields". Free text returns "".
func payloadShape(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &arr); err == nil {
			return fmt.Sprintf("%d items", len(arr))
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return fmt.Sprintf("%d fields", len(obj))
		}
	}
	return ""
}

// excerpt keeps the head and tail of content within the byte and line
// budgets, eliding the middle. Bytes are counted, not runes: a multi-byte
// boundary cut is cosmetic while an unbounded digest is a correctness bug.
func excerpt(content string, maxBytes, maxLines int) string {
	if maxBytes < 16 {
		maxBytes = 16
	}
	if maxLines < 1 {
		maxLines = 1
	}

	lines := strings.Split(content, "\n")
	if len(lines) > maxLines {
		keep := maxLines / 2
		if keep == 0 {
			keep = 1
		}
		elided := len(lines) - keep*2
		if elided < 1 {
			elided = 1
		}
		head := strings.Join(lines[:keep], "\n")
		tail := strings.Join(lines[len(lines)-keep:], "\n")
		content = head + fmt.Sprintf("\n[... %d lines elided ...]\n", elided) + tail
	}

	if len(content) > maxBytes {
		half := maxBytes / 2
		content = content[:half] + fmt.Sprintf("\n[... %d bytes elided ...]\n", len(content)-maxBytes) + content[len(content)-half:]
	}
	return content
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// clamp is the hard ceiling: whatever the formatting above produced, the
// returned digest never exceeds MaxSummaryBytes.
func clamp(s string) string {
	if len(s) <= MaxSummaryBytes {
		return s
	}
	const marker = "[truncated]"
	return s[:MaxSummaryBytes-len(marker)] + marker
}
