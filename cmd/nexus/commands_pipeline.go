package main

import (
	"fmt"

	"github.com/haasonsaas/nexus/internal/config"
	"github.com/spf13/cobra"
)

// =============================================================================
// Pipeline Commands
// =============================================================================

// buildPipelineCmd creates the "pipeline" command group for running and
// inspecting DOT-described agent pipelines.
func buildPipelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run and inspect DOT-described agent pipelines",
		Long: `Execute the graph description language pipelines used for multi-stage
agent workflows: parse a .dot file, validate it against the engine's lint
rules, run it from its start node, or resume it from a saved checkpoint.`,
	}

	cmd.AddCommand(buildPipelineRunCmd())
	cmd.AddCommand(buildPipelineValidateCmd())
	cmd.AddCommand(buildPipelineResumeCmd())

	return cmd
}

func buildPipelineRunCmd() *cobra.Command {
	var (
		configPath string
		provider   string
		dryRun     bool
		checkpoint bool
		logsRoot   string
		maxSteps   int
	)

	cmd := &cobra.Command{
		Use:   "run <file.dot>",
		Short: "Run a pipeline graph from its start node",
		Long: `Parse, validate, and execute a DOT pipeline graph.

Each node's handler runs in turn, following the graph's edges according to
the outcome and condition-matching rules, until the exit node's goal gates
are satisfied or the run fails.`,
		Example: `  nexus pipeline run build.dot
  nexus pipeline run build.dot --dry-run
  nexus pipeline run build.dot --provider anthropic --checkpoint`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logsRoot == "" {
				logsRoot = defaultPipelineLogsRoot(args[0])
			}
			return runPipelineRun(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], provider, dryRun, checkpoint, logsRoot, maxSteps)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to config file")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider id for codergen nodes (defaults to llm.default_provider)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate every node instead of invoking handlers")
	cmd.Flags().BoolVar(&checkpoint, "checkpoint", false, "Save a checkpoint.json after every node")
	cmd.Flags().StringVar(&logsRoot, "logs-root", "", "Directory for stage logs and checkpoints (default: a temp dir named after the graph file)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Maximum nodes to execute before aborting (default: engine default of 1000)")

	return cmd
}

func buildPipelineValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.dot>",
		Short: "Validate a pipeline graph without running it",
		Long:  "Parse a DOT pipeline graph and report every lint diagnostic (start/exit presence, reachability, dangling edges, missing goal-gate retries, and more).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineValidate(cmd.OutOrStdout(), args[0])
		},
	}
	return cmd
}

func buildPipelineResumeCmd() *cobra.Command {
	var (
		configPath   string
		provider     string
		dryRun       bool
		checkpointOn bool
		logsRoot     string
		maxSteps     int
	)

	cmd := &cobra.Command{
		Use:   "resume <checkpoint.json> <file.dot>",
		Short: "Resume a pipeline run from a saved checkpoint",
		Long:  "Restore context and progress from a checkpoint file, then continue executing the named graph from the node after the checkpoint's current node.",
		Example: `  nexus pipeline resume /tmp/nexus-pipeline-runs/build/checkpoint.json build.dot`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath = resolveConfigPath(configPath)
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logsRoot == "" {
				logsRoot = defaultPipelineLogsRoot(args[1])
			}
			return runPipelineResume(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], args[1], provider, dryRun, checkpointOn, logsRoot, maxSteps)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to config file")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider id for codergen nodes (defaults to llm.default_provider)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate every node instead of invoking handlers")
	cmd.Flags().BoolVar(&checkpointOn, "checkpoint", true, "Keep saving a checkpoint.json after every node")
	cmd.Flags().StringVar(&logsRoot, "logs-root", "", "Directory for stage logs and checkpoints (default: a temp dir named after the graph file)")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Maximum nodes to execute before aborting (default: engine default of 1000)")

	return cmd
}
