package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// Serve Command
// =============================================================================

// buildServeCmd creates the "serve" command: a minimal HTTP facade that
// accepts a graph, runs it, and streams engine events to websocket
// clients, plus any schedule entries from the config's cron-driven runs.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		provider   string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pipeline runs over HTTP",
		Long: `Start an HTTP server that accepts a graph via POST /runs, executes it
with the pipeline engine, and streams its events over a websocket connection
at GET /runs/{id}/events.

Every config.schedule entry is registered as a cron job that runs its named
graph on the given schedule. The config file is watched for changes and
reloaded without restarting the server.

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  nexus serve

  # Bind to a specific host and port
  nexus serve --host 0.0.0.0 --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			return runServe(cmd.Context(), serveOptions{
				configPath: configPath,
				host:       host,
				port:       port,
				provider:   provider,
				dryRun:     dryRun,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().StringVar(&host, "host", "", "Override server.host from config")
	cmd.Flags().IntVar(&port, "port", 0, "Override server.port from config")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider id for codergen nodes (defaults to llm.default_provider)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate every node instead of invoking handlers")

	return cmd
}
