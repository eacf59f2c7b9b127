// Command orbit runs the tool-call orchestration engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orbit-agents/orbit/internal/agent"
	"github.com/orbit-agents/orbit/internal/agent/providers"
	"github.com/orbit-agents/orbit/internal/config"
	"github.com/orbit-agents/orbit/internal/gateway"
	"github.com/orbit-agents/orbit/internal/observability"
	"github.com/orbit-agents/orbit/internal/sessions"
	"github.com/orbit-agents/orbit/internal/tools"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "orbit",
		Short:        "Tool-call orchestration engine for conversational sessions",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the orbit version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("orbit", version)
		},
	}
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway and orchestration loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := buildStore(ctx, cfg, logger)
			if err != nil {
				return err
			}

			registry := agent.NewRegistry()
			if err := tools.RegisterAll(registry, tools.Config{
				WorkspaceRoot:  cfg.Tools.WorkspaceRoot,
				ShellAllowlist: cfg.Tools.ShellAllowlist,
			}, store); err != nil {
				return fmt.Errorf("register tools: %w", err)
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}

			dispatcher := agent.NewDispatcher(registry, agent.NewParamResolver(), agent.DispatcherConfig{
				Concurrency:    cfg.Tools.Concurrency,
				PerToolTimeout: cfg.Tools.Timeout,
			}, logger)

			loopConfig := agent.DefaultLoopConfig()
			loopConfig.Model = cfg.LLM.Model
			loopConfig.SystemPrompt = cfg.Loop.SystemPrompt
			loopConfig.MaxIterations = cfg.Loop.MaxIterations
			loopConfig.MaxCostTokens = cfg.Loop.MaxCostTokens
			loopConfig.MaxTokens = cfg.Loop.MaxTokens
			loopConfig.HistoryLimit = cfg.Loop.HistoryLimit

			loop := agent.NewLoop(provider, dispatcher, store, loopConfig, logger)

			server := gateway.NewServer(loop, store, logger, gateway.Options{
				Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
				MetricsAddr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			})

			logger.Info("starting orbit", "version", version, "provider", provider.Name())
			return server.Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sessions.Store, error) {
	if cfg.Store.Path == "" {
		logger.Warn("no store path configured, sessions are in-memory only")
		return sessions.NewMemoryStore(), nil
	}
	durable, err := sessions.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	cached := sessions.NewCachedStore(durable, logger)
	cached.StartJanitor(ctx, cfg.Store.JanitorInterval, cfg.Store.MaxIdle)
	return cached, nil
}

func buildProvider(cfg *config.Config) (agent.ModelProvider, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		return providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.Model,
		})
	case "openai":
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
