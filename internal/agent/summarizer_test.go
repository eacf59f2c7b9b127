package agent

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSummarizeSuccessStatusLine(t *testing.T) {
	got := Summarize("search", nil, "match one\nmatch two", nil)
	if !strings.HasPrefix(got, "search: ok") {
		t.Errorf("summary %q does not open with the status line", got)
	}
	if !strings.Contains(got, "match one") {
		t.Errorf("summary %q dropped short content", got)
	}
}

func TestSummarizeErrorStatusLine(t *testing.T) {
	got := Summarize("shell", nil, "", errors.New("command failed: exit 1\nextra detail"))
	if !strings.HasPrefix(got, "shell: error: command failed: exit 1") {
		t.Errorf("summary %q does not carry the first error line", got)
	}
	if strings.Contains(got, "extra detail") {
		t.Errorf("summary %q carries error lines past the first", got)
	}
}

func TestSummarizeDescribesJSONShape(t *testing.T) {
	got := Summarize("list_files", nil, `[1,2,3,4,5]`, nil)
	if !strings.Contains(got, "5 items") {
		t.Errorf("summary %q does not describe array size", got)
	}

	got = Summarize("session_info", nil, `{"a":1,"b":2}`, nil)
	if !strings.Contains(got, "2 fields") {
		t.Errorf("summary %q does not describe object size", got)
	}
}

func TestSummarizeKeepsHeadAndTail(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = strings.Repeat("x", 10)
	}
	lines[0] = "FIRST"
	lines[len(lines)-1] = "LAST"

	got := Summarize("read_file", nil, strings.Join(lines, "\n"), nil)
	if !strings.Contains(got, "FIRST") || !strings.Contains(got, "LAST") {
		t.Errorf("summary %q lost the head or tail of the content", got)
	}
	if !strings.Contains(got, "lines elided") {
		t.Errorf("summary %q has no elision marker for a 50-line result", got)
	}
}

func TestSummarizeBoundProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("summary never exceeds the byte ceiling", prop.ForAll(
		func(tool, raw string) bool {
			return len(Summarize(tool, nil, raw, nil)) <= MaxSummaryBytes
		},
		gen.Identifier(),
		gen.AnyString(),
	))

	properties.Property("summary is deterministic", prop.ForAll(
		func(raw string) bool {
			return Summarize("t", nil, raw, nil) == Summarize("t", nil, raw, nil)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
