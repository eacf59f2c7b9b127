// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Loop    LoopConfig    `yaml:"loop"`
	Tools   ToolsConfig   `yaml:"tools"`
	Store   StoreConfig   `yaml:"store"`
	LLM     LLMConfig     `yaml:"llm"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

type LoopConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	MaxCostTokens int    `yaml:"max_cost_tokens"`
	MaxTokens     int    `yaml:"max_tokens"`
	HistoryLimit  int    `yaml:"history_limit"`
	SystemPrompt  string `yaml:"system_prompt"`
}

type ToolsConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
	WorkspaceRoot  string        `yaml:"workspace_root"`
	ShellAllowlist []string      `yaml:"shell_allowlist"`
}

type StoreConfig struct {
	// Path is the SQLite database file. Empty means in-memory only.
	Path string `yaml:"path"`

	JanitorInterval time.Duration `yaml:"janitor_interval"`
	MaxIdle         time.Duration `yaml:"max_idle"`
}

type LLMConfig struct {
	// Provider selects the adapter: "anthropic" or "openai".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path, expanding ${VAR} references from the
// environment before parsing, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}

	if cfg.Loop.MaxIterations == 0 {
		cfg.Loop.MaxIterations = 5
	}
	if cfg.Loop.MaxCostTokens == 0 {
		cfg.Loop.MaxCostTokens = 50000
	}
	if cfg.Loop.MaxTokens == 0 {
		cfg.Loop.MaxTokens = 4096
	}
	if cfg.Loop.HistoryLimit == 0 {
		cfg.Loop.HistoryLimit = 30
	}

	if cfg.Tools.Concurrency == 0 {
		cfg.Tools.Concurrency = 4
	}
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = 30 * time.Second
	}
	if cfg.Tools.WorkspaceRoot == "" {
		cfg.Tools.WorkspaceRoot = "."
	}
	if len(cfg.Tools.ShellAllowlist) == 0 {
		cfg.Tools.ShellAllowlist = []string{"ls", "cat", "grep", "wc", "head", "tail"}
	}

	if cfg.Store.JanitorInterval == 0 {
		cfg.Store.JanitorInterval = time.Minute
	}
	if cfg.Store.MaxIdle == 0 {
		cfg.Store.MaxIdle = 30 * time.Minute
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.Provider == "openai" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate rejects configurations the engine cannot run with.
func (cfg *Config) Validate() error {
	switch cfg.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if cfg.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be at least 1")
	}
	if cfg.Loop.MaxCostTokens < 1 {
		return fmt.Errorf("loop.max_cost_tokens must be at least 1")
	}
	if cfg.Tools.Concurrency < 1 {
		return fmt.Errorf("tools.concurrency must be at least 1")
	}
	return nil
}
