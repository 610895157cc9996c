// Package main provides the CLI entry point for the maildesk support-inbox
// backend.
//
// maildesk pulls support emails into a dashboard, runs an AI pipeline over
// unprocessed items (summary, structured facts, suggested reply), and
// streams live progress to connected dashboards.
//
// # Basic Usage
//
// Start the API server:
//
//	maildesk serve --config maildesk.yaml
//
// Process the inbox once from the command line:
//
//	maildesk run --mode batch
//	maildesk run --item <id>
//
// Query a running server:
//
//	maildesk status --addr http://localhost:8080
//
// # Environment Variables
//
//   - MAILDESK_CONFIG: Path to configuration file (default: maildesk.yaml)
//   - OPENAI_API_KEY / ANTHROPIC_API_KEY / GEMINI_API_KEY: provider keys,
//     referenced from the config file via ${VAR} expansion
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "maildesk",
		Short:        "Support-inbox dashboard backend with an AI processing pipeline",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildRunCmd(),
		buildStatusCmd(),
		buildExtractCmd(),
		buildConfigCmd(),
	)
	return rootCmd
}

// configPath resolves the config file path from flag or environment.
func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("MAILDESK_CONFIG"); env != "" {
		return env
	}
	return ""
}
