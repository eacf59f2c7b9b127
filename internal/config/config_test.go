package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orbit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: anthropic\n  api_key: test-key\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loop.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", cfg.Loop.MaxIterations)
	}
	if cfg.Loop.MaxCostTokens != 50000 {
		t.Errorf("MaxCostTokens = %d, want 50000", cfg.Loop.MaxCostTokens)
	}
	if cfg.Loop.HistoryLimit != 30 {
		t.Errorf("HistoryLimit = %d, want 30", cfg.Loop.HistoryLimit)
	}
	if cfg.Tools.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Tools.Concurrency)
	}
	if cfg.Tools.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Tools.Timeout)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("ORBIT_TEST_KEY", "from-env")
	path := writeConfig(t, "llm:\n  provider: openai\n  api_key: ${ORBIT_TEST_KEY}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.LLM.APIKey)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9999
loop:
  max_iterations: 12
  max_cost_tokens: 123456
tools:
  concurrency: 8
  timeout: 5s
  shell_allowlist: [ls, echo]
llm:
  provider: openai
  api_key: k
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9999 {
		t.Errorf("HTTPPort = %d", cfg.Server.HTTPPort)
	}
	if cfg.Loop.MaxIterations != 12 || cfg.Loop.MaxCostTokens != 123456 {
		t.Errorf("loop = %+v", cfg.Loop)
	}
	if cfg.Tools.Concurrency != 8 || cfg.Tools.Timeout != 5*time.Second {
		t.Errorf("tools = %+v", cfg.Tools)
	}
	if len(cfg.Tools.ShellAllowlist) != 2 {
		t.Errorf("allowlist = %v", cfg.Tools.ShellAllowlist)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: carrier-pigeon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an unknown provider")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
}
