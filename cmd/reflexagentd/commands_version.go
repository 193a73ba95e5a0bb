package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersionCmd reports the build-info var block, matching the
// cmd/nexus's "version" subcommand rather than relying solely on
// cobra's --version flag.
func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "reflexagentd %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
