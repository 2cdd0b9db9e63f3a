// ctcoach: Critical Thinking Coach
//
// An MCP server (and terminal practice mode) that coaches users through a
// structured reasoning exercise on a KPI dashboard: define the problem,
// gather observations, analyze, decide and communicate.
//
// Usage:
//
//	ctcoach serve       # Start MCP server (stdio transport)
//	ctcoach practice    # Run an exercise in the terminal
//	ctcoach version     # Print the version
package main

import (
	"fmt"
	"os"

	"github.com/HendryAvila/ctcoach/internal/config"
	"github.com/HendryAvila/ctcoach/internal/logging"
	ctserver "github.com/HendryAvila/ctcoach/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ctcoach",
		Short: "Critical-thinking coach for KPI dashboards",
		Long: `ctcoach walks you through a five-phase reasoning exercise on a dashboard
and asks an AI coach to review every step.

Add it to your AI tool's MCP config:

  {
    "mcpServers": {
      "ctcoach": {
        "command": "ctcoach",
        "args": ["serve"],
        "env": { "GEMINI_API_KEY": "..." }
      }
    }
  }`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ~/.ctcoach/config.yaml)")

	root.AddCommand(newServeCmd(), newPracticeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ctcoach v%s\n", ctserver.Version)
		},
	}
}

// setup loads configuration and builds the logger. console controls
// whether log lines also go to stderr.
func setup(console bool) (config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("creating data dir: %w", err)
	}

	log, closeLog, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console && console,
		Stderr:  os.Stderr,
	})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, log, closeLog, nil
}
