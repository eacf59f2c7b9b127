package tools

import (
	"strings"
	"testing"

	"github.com/orbit-agents/orbit/internal/agent"
)

func shellRegistry(t *testing.T, allowlist ...string) *agent.Registry {
	t.Helper()
	reg := agent.NewRegistry()
	if err := RegisterShellTool(reg, Config{WorkspaceRoot: t.TempDir(), ShellAllowlist: allowlist}); err != nil {
		t.Fatalf("RegisterShellTool: %v", err)
	}
	return reg
}

func TestShellRunsAllowlistedCommand(t *testing.T) {
	reg := shellRegistry(t, "echo")
	got, err := runTool(t, reg, "shell", `{"command":"echo hello shell"}`)
	if err != nil {
		t.Fatalf("shell: %v", err)
	}
	if !strings.Contains(got, "hello shell") {
		t.Errorf("output = %q", got)
	}
}

func TestShellRejectsUnlistedBinary(t *testing.T) {
	reg := shellRegistry(t, "echo")
	_, err := runTool(t, reg, "shell", `{"command":"rm -rf /"}`)
	if err == nil || !strings.Contains(err.Error(), "not allowlisted") {
		t.Fatalf("err = %v, want allowlist rejection", err)
	}
}

func TestShellRejectsUnparsableCommand(t *testing.T) {
	reg := shellRegistry(t, "echo")
	if _, err := runTool(t, reg, "shell", `{"command":"echo \"unterminated"}`); err == nil {
		t.Fatal("shell accepted an unparsable command line")
	}
}

func TestShellReportsCommandFailure(t *testing.T) {
	reg := shellRegistry(t, "ls")
	_, err := runTool(t, reg, "shell", `{"command":"ls /definitely/not/a/real/path"}`)
	if err == nil {
		t.Fatal("shell reported success for a failing command")
	}
	if !strings.Contains(err.Error(), "command failed") {
		t.Errorf("err = %v", err)
	}
}

func TestShellToolIsCritical(t *testing.T) {
	reg := shellRegistry(t, "echo")
	def, err := reg.Resolve("shell")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !def.Critical {
		t.Error("shell tool is not marked critical")
	}
}
