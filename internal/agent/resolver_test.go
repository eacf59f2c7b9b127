package agent

import (
	"encoding/json"
	"errors"
	"testing"
)

func pathToolDef(t *testing.T) *ToolDefinition {
	t.Helper()
	reg := NewRegistry()
	err := reg.Register(ToolDefinition{
		Name:    "read_file",
		Schema:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		Handler: echoHandler,
		Infer:   PathInference("path"),
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	def, err := reg.Resolve("read_file")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return def
}

func TestResolveValidPayloadUsedVerbatim(t *testing.T) {
	def := pathToolDef(t)
	resolver := NewParamResolver()

	raw := json.RawMessage(`{"path":"a/b.txt"}`)
	got, err := resolver.Resolve(def, raw, "ignored text")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("Resolve = %s, want payload unchanged", got)
	}
}

func TestResolveInfersPathFromUserText(t *testing.T) {
	def := pathToolDef(t)
	resolver := NewParamResolver()

	cases := []struct {
		text string
		want string
	}{
		{"please create file notes.md for me", "notes.md"},
		{"read `docs/setup.md` and summarize it", "docs/setup.md"},
		{`open "src/main.go" please`, "src/main.go"},
		{"what does internal/agent/loop.go do?", "internal/agent/loop.go"},
	}
	for _, tc := range cases {
		got, err := resolver.Resolve(def, nil, tc.text)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tc.text, err)
			continue
		}
		var payload struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(got, &payload); err != nil {
			t.Errorf("Resolve(%q) produced invalid JSON: %v", tc.text, err)
			continue
		}
		if payload.Path != tc.want {
			t.Errorf("Resolve(%q).path = %q, want %q", tc.text, payload.Path, tc.want)
		}
	}
}

func TestResolveNoHintReturnsUnresolved(t *testing.T) {
	def := pathToolDef(t)
	resolver := NewParamResolver()

	_, err := resolver.Resolve(def, json.RawMessage(`{"path":7}`), "tell me a joke")
	if !errors.Is(err, ErrParametersUnresolved) {
		t.Fatalf("Resolve = %v, want ErrParametersUnresolved", err)
	}
}

func TestResolveInvalidPayloadFallsBackToInference(t *testing.T) {
	def := pathToolDef(t)
	resolver := NewParamResolver()

	got, err := resolver.Resolve(def, json.RawMessage(`{"path":`), "show me config.yaml")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var payload struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(got, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Path != "config.yaml" {
		t.Errorf("path = %q, want config.yaml", payload.Path)
	}
}

func TestCommandInferenceRequiresParsableSpan(t *testing.T) {
	infer := CommandInference("command")

	if got, ok := infer("run `ls -la cmd` for me"); !ok {
		t.Error("backticked command not extracted")
	} else {
		var payload struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal(got, &payload); err != nil || payload.Command != "ls -la cmd" {
			t.Errorf("command = %q (err %v), want ls -la cmd", payload.Command, err)
		}
	}

	if _, ok := infer("there is nothing runnable here"); ok {
		t.Error("inference produced a command from plain prose")
	}
	if _, ok := infer("try `echo \"unterminated` maybe"); ok {
		t.Error("inference accepted a span that cannot be word-split")
	}
}

func TestPhraseInference(t *testing.T) {
	infer := PhraseInference("query")

	got, ok := infer(`search for "rate limiting" in the docs.`)
	if !ok {
		t.Fatal("quoted phrase not extracted")
	}
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(got, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Query != "rate limiting" {
		t.Errorf("query = %q, want rate limiting", payload.Query)
	}

	got, ok = infer("look for retry backoff settings")
	if !ok {
		t.Fatal("clause after 'look for' not extracted")
	}
	if err := json.Unmarshal(got, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Query != "retry backoff settings" {
		t.Errorf("query = %q, want retry backoff settings", payload.Query)
	}
}
