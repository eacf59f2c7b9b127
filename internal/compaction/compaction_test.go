package compaction

import (
	"fmt"
	"strings"
	"testing"

	"github.com/orbit-agents/orbit/pkg/models"
)

func makeMessages(n int) []models.Message {
	out := make([]models.Message, n)
	for i := range out {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out[i] = models.Message{Ordinal: i, Role: role, Content: fmt.Sprintf("message %d", i)}
	}
	return out
}

func TestBoundUnderLimitLeavesHistoryAlone(t *testing.T) {
	messages := makeMessages(5)
	summary, kept := Bound(messages, 10)
	if summary != "" {
		t.Errorf("summary = %q, want empty when nothing is folded", summary)
	}
	if len(kept) != 5 {
		t.Errorf("len(kept) = %d, want 5", len(kept))
	}
}

func TestBoundFoldsOldestMessages(t *testing.T) {
	messages := makeMessages(40)
	summary, kept := Bound(messages, 30)

	if len(kept) != 30 {
		t.Fatalf("len(kept) = %d, want 30", len(kept))
	}
	if kept[0].Content != "message 10" {
		t.Errorf("kept[0] = %q, want message 10", kept[0].Content)
	}
	if !strings.Contains(summary, "message 0") || !strings.Contains(summary, "message 9") {
		t.Errorf("summary %q does not mention the folded range", summary)
	}
	if strings.Contains(summary, "message 10") {
		t.Errorf("summary %q mentions a message that was kept verbatim", summary)
	}
}

func TestBoundNeverRefoldsAMessage(t *testing.T) {
	// Re-bounding a growing history, the way successive loop iterations do,
	// must not duplicate digest lines for messages folded on earlier calls.
	history := makeMessages(12)
	for turn := 0; turn < 5; turn++ {
		summary, _ := Bound(history, 10)
		seen := map[string]int{}
		for _, line := range strings.Split(summary, "\n") {
			seen[line]++
		}
		for line, n := range seen {
			if line != "" && n > 1 {
				t.Fatalf("turn %d: digest line %q appears %d times", turn, line, n)
			}
		}
		history = append(history, models.Message{
			Ordinal: len(history),
			Role:    models.RoleUser,
			Content: fmt.Sprintf("message %d", len(history)),
		})
	}
}

func TestBoundDigestStaysWithinCeiling(t *testing.T) {
	big := make([]models.Message, 300)
	for i := range big {
		big[i] = models.Message{Ordinal: i, Role: models.RoleUser, Content: strings.Repeat("w", 200)}
	}
	summary, _ := Bound(big, 30)
	if len(summary) > MaxDigestBytes {
		t.Errorf("digest is %d bytes, ceiling is %d", len(summary), MaxDigestBytes)
	}
}

func TestBoundIsDeterministic(t *testing.T) {
	messages := makeMessages(50)
	s1, _ := Bound(messages, 30)
	s2, _ := Bound(messages, 30)
	if s1 != s2 {
		t.Error("same inputs produced different digests")
	}
}

func TestDigestLineShapes(t *testing.T) {
	toolCallMsg := models.Message{
		Role:      models.RoleAssistant,
		ToolCalls: []models.ToolCall{{Name: "search"}, {Name: "read_file"}},
	}
	line := digestLine(toolCallMsg)
	if !strings.Contains(line, "search") || !strings.Contains(line, "read_file") {
		t.Errorf("tool call line %q does not list tool names", line)
	}

	resultMsg := models.Message{
		Role:        models.RoleTool,
		ToolResults: []models.ToolResult{{Content: "it worked", IsError: false}},
	}
	line = digestLine(resultMsg)
	if !strings.Contains(line, "it worked") || !strings.Contains(line, "ok") {
		t.Errorf("tool result line %q", line)
	}
}

func TestEstimateCostCountsAllParts(t *testing.T) {
	messages := []models.Message{
		{Role: models.RoleUser, Content: "a reasonably sized question about things"},
		{Role: models.RoleTool, ToolResults: []models.ToolResult{{Content: "tool output text"}}},
	}
	withSummary := EstimateCost("some digest", messages)
	without := EstimateCost("", messages)
	if withSummary <= without {
		t.Errorf("EstimateCost ignores the summary: %d <= %d", withSummary, without)
	}
	if without <= 0 {
		t.Errorf("EstimateCost = %d, want positive", without)
	}
}
