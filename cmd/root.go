package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"persai/internal/config"
	"persai/pkg/logging"
)

// rootCmd represents the base command for the persai application.
var rootCmd = &cobra.Command{
	Use:   "persai",
	Short: "Conversational AI backend for Prometheus metrics",
	Long: `persai bridges a conversational AI agent to a Prometheus-compatible
metrics API proxied through Perses. It serves the session and turn endpoints
used by the PersAI frontend and executes the agent's Prometheus tool calls
with the caller's credentials.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if v := os.Getenv(config.EnvLogLevel); v != "" {
			level = logging.ParseLevel(v)
		}
		logging.Init(level, os.Stderr)
	},
}

// SetVersion sets the version for the root command. Called from main to
// inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "persai version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
