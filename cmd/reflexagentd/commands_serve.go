package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the webhook
// front door and the Agent Loop it dispatches into, matching the
// cmd/nexus's buildServeCmd shape (config/debug flags, RunE delegating to
// a handlers_serve.go function).
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reflexagentd webhook service",
		Long: `Start the reflexagentd webhook service.

The service will:
1. Load configuration from the specified file (if any) and the environment
2. Construct the configured LLM provider (Anthropic, Google, or Ollama)
3. Build the tool registry, reflection manager, and agent loop
4. Start the HTTP listener serving /implement, /healthz, and /metrics

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start reading purely from the environment
  reflexagentd serve

  # Start with a config file
  reflexagentd serve --config /etc/reflexagentd/config.yaml

  # Start with debug logging
  reflexagentd serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (optional; falls back to environment variables)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging (verbose output)")

	return cmd
}
