// Command reflexagentd runs the Reflexion agentic coding loop as a single
// long-lived webhook service: one HTTP listener (internal/webhook) that
// recognizes a tracker comment trigger and dispatches a fresh Agent Loop
// run (C6) for the named issue.
//
// Grounded on cmd/nexus's file layout (main.go builds the root
// cobra.Command and wires build-info flags; commands_*.go build individual
// subcommands; handlers_*.go hold the subcommand bodies), trimmed to this
// binary's two subcommands: serve and version.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags at build time:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command execution failed")
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reflexagentd",
		Short: "reflexagentd - autonomous Reflexion coding agent",
		Long: `reflexagentd drives an LLM through an autonomous coding loop with
Reflexion self-improvement: on a tracker webhook trigger, it clones the
target repository, runs tool-calling iterations against an LLM provider
until the task is complete or a limit is hit, and opens a pull request.

Supported LLM providers: Anthropic (Claude), Google (Gemini), Ollama (local).`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return rootCmd
}
