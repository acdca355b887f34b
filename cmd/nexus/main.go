// Package main provides the CLI entry point for the pipeline execution
// engine: a thin wrapper around internal/pipeline that parses, lints,
// runs, resumes, and serves DOT-described agent pipelines.
//
// # Basic Usage
//
// Run a pipeline graph from its start node:
//
//	nexus pipeline run build.dot
//
// Validate a graph without running it:
//
//	nexus pipeline validate build.dot
//
// Resume a crashed or paused run from its checkpoint:
//
//	nexus pipeline resume /tmp/nexus-pipeline-runs/build/checkpoint.json build.dot
//
// Serve pipelines over HTTP, with optional cron-scheduled runs:
//
//	nexus serve --host 0.0.0.0 --port 8080
//
// # Environment Variables
//
//   - NEXUS_CONFIG: Path to configuration file (default: nexus.yaml)
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"     // Semantic version (e.g., "v1.0.0")
	commit  = "none"    // Git commit SHA
	date    = "unknown" // Build timestamp
)

// defaultConfigPath is used when --config/-c is not given and NEXUS_CONFIG
// is unset.
const defaultConfigPath = "nexus.yaml"

// main is the entry point for the CLI.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nexus",
		Short: "Run and serve DOT-described agent pipelines",
		Long: `Nexus drives a parsed pipeline graph from its start node to its exit
node, dispatching each node to a handler, retrying failed stages, checkpointing
progress, and enforcing goal gates before allowing a run to finish.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildPipelineCmd(),
		buildServeCmd(),
	)

	return rootCmd
}

// resolveConfigPath returns path if set, else NEXUS_CONFIG, else
// defaultConfigPath.
func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) != "" && path != defaultConfigPath {
		return path
	}
	if env := strings.TrimSpace(os.Getenv("NEXUS_CONFIG")); env != "" {
		return env
	}
	if strings.TrimSpace(path) != "" {
		return path
	}
	return defaultConfigPath
}
