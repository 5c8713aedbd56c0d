// Package cli implements the testbridge command tree.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "testbridge",
	Short: "AI safety test bridge for external agents",
	Long: `testbridge runs safety test suites against external AI systems through
pluggable adapters and reports normalized, versioned run results.

Agents are resolved from configuration (per-agent files, TB_AGENT_* environment
variables, built-in defaults); suites cover ethics, adversarial robustness,
consistency and explainability.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

var version = "dev"

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute runs the command tree.
func Execute() error {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	rootCmd.PersistentFlags().String("config", "config.yaml", "path to the configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd.Execute()
}
