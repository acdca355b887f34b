package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/agent/providers"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/pipeline"
	"github.com/haasonsaas/nexus/internal/pipeline/checkpoint"
	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/handler"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
	"github.com/haasonsaas/nexus/internal/pipeline/transform"
)

// buildLLMProvider resolves a provider id (falling back to
// llm.default_provider) against the loaded config's llm.providers map and
// constructs the matching legacy wire adapter. Only the two providers
// named in the package doc's environment-variable list (Anthropic,
// OpenAI) are wired here; additional adapters already exist under
// internal/agent/providers and can be added the same way as a config
// entry needs them.
func buildLLMProvider(cfg *config.Config, providerID string) (agent.LLMProvider, string, error) {
	if cfg == nil {
		return nil, "", errors.New("config is required")
	}
	if strings.TrimSpace(providerID) == "" {
		providerID = cfg.LLM.DefaultProvider
	}
	providerKey := strings.ToLower(strings.TrimSpace(providerID))
	providerCfg, ok := cfg.LLM.Providers[providerKey]
	if !ok {
		return nil, "", fmt.Errorf("provider config missing for %q", providerID)
	}

	switch providerKey {
	case "anthropic":
		if providerCfg.APIKey == "" {
			return nil, "", errors.New("anthropic api key is required (set llm.providers.anthropic.api_key)")
		}
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       providerCfg.APIKey,
			BaseURL:      providerCfg.BaseURL,
			DefaultModel: providerCfg.DefaultModel,
		})
		if err != nil {
			return nil, "", fmt.Errorf("anthropic provider: %w", err)
		}
		return p, resolveDefaultModel(providerCfg.DefaultModel, p), nil
	case "openai":
		if providerCfg.APIKey == "" {
			return nil, "", errors.New("openai api key is required (set llm.providers.openai.api_key)")
		}
		p := providers.NewOpenAIProvider(providerCfg.APIKey)
		return p, resolveDefaultModel(providerCfg.DefaultModel, p), nil
	default:
		return nil, "", fmt.Errorf("unsupported provider %q", providerID)
	}
}

func resolveDefaultModel(configured string, provider agent.LLMProvider) string {
	if configured != "" {
		return configured
	}
	if models := provider.Models(); len(models) > 0 {
		return models[0].ID
	}
	return ""
}

// providerCodergenBackend drives codergen nodes with a single, non-agentic
// completion call: the node's rendered prompt becomes the sole user
// message and the response text is returned verbatim. Pipeline nodes are
// one-shot by design (spec.md's stage model), so this intentionally
// skips the multi-turn tool loop agent.Session provides.
type providerCodergenBackend struct {
	provider providers.Provider
	model    string
}

func (b *providerCodergenBackend) Run(ctx context.Context, node *graph.Node, prompt string, pc *pctx.Context) (string, *outcome.Outcome, error) {
	model := node.LLMModel
	if model == "" {
		model = b.model
	}
	req := &llm.Request{
		Model:    model,
		Messages: []llm.Message{llm.TextOnly(llm.RoleUser, prompt)},
	}
	resp, err := b.provider.Complete(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("codergen node %q: %w", node.ID, err)
	}
	return resp.Message.ConcatText(), nil, nil
}

// buildPipelineEngine wires an Engine from the resolved config: a local
// Environment rooted at the workspace path (for "tool" nodes) and a
// provider-backed codergen handler (unless dryRun, which skips live LLM
// calls entirely).
func buildPipelineEngine(cfg *config.Config, providerID string, dryRun, checkpointEnabled bool, logsRoot string, maxSteps int, onEvent func(pipeline.Event)) (*pipeline.Engine, error) {
	root := "."
	if cfg != nil && strings.TrimSpace(cfg.Workspace.Path) != "" {
		root = cfg.Workspace.Path
	}
	localEnv := env.NewLocal(root)

	var backend handler.CodergenBackend
	if !dryRun {
		llmProvider, model, err := buildLLMProvider(cfg, providerID)
		if err != nil {
			return nil, fmt.Errorf("resolve codergen provider: %w", err)
		}
		backend = &providerCodergenBackend{provider: providers.NewBridge(llmProvider), model: model}
	}

	engineCfg := pipeline.Config{
		LogsRoot:          logsRoot,
		DryRun:            dryRun,
		MaxSteps:          maxSteps,
		CodergenBackend:   backend,
		Env:               localEnv,
		CheckpointEnabled: checkpointEnabled,
		OnEvent:           onEvent,
	}
	return pipeline.New(engineCfg), nil
}

func loadAndPrepareGraph(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	g, err := graph.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	g = transform.VariableExpansion{}.Apply(g)
	g = transform.Stylesheet{}.Apply(g)
	return g, nil
}

// runPipelineValidate parses and lints a graph file, printing every
// diagnostic (errors and warnings alike) and returning a non-nil error
// only when an error-severity diagnostic is present.
func runPipelineValidate(out io.Writer, path string) error {
	g, err := loadAndPrepareGraph(path)
	if err != nil {
		return err
	}

	diags, valErr := graph.ValidateOrError(g)
	if len(diags) == 0 {
		fmt.Fprintf(out, "%s: valid, no diagnostics\n", path)
		return nil
	}

	for _, d := range diags {
		loc := d.NodeID
		if d.Edge[0] != "" || d.Edge[1] != "" {
			loc = fmt.Sprintf("%s -> %s", d.Edge[0], d.Edge[1])
		}
		fmt.Fprintf(out, "[%s] %s: %s", d.Severity, d.Rule, d.Message)
		if loc != "" {
			fmt.Fprintf(out, " (%s)", loc)
		}
		if d.Fix != "" {
			fmt.Fprintf(out, "\n    fix: %s", d.Fix)
		}
		fmt.Fprintln(out)
	}

	if valErr != nil {
		return fmt.Errorf("%s: %d diagnostic(s), at least one error", path, len(diags))
	}
	fmt.Fprintf(out, "%s: valid, %d warning(s)\n", path, len(diags))
	return nil
}

// runPipelineRun executes a graph file from its start node, printing
// engine events as they're emitted and the final outcome at the end.
func runPipelineRun(ctx context.Context, out io.Writer, cfg *config.Config, path, providerID string, dryRun, checkpointEnabled bool, logsRoot string, maxSteps int) error {
	g, err := loadAndPrepareGraph(path)
	if err != nil {
		return err
	}
	if _, err := graph.ValidateOrError(g); err != nil {
		return fmt.Errorf("graph failed validation: %w", err)
	}

	eng, err := buildPipelineEngine(cfg, providerID, dryRun, checkpointEnabled, logsRoot, maxSteps, nil)
	if err != nil {
		return err
	}

	o, err := eng.Run(ctx, g, nil)
	printPipelineEvents(out, eng)
	if err != nil {
		return err
	}
	return printPipelineOutcome(out, o)
}

// runPipelineResume loads a checkpoint and resumes a graph file from the
// node immediately following the checkpoint's current node.
func runPipelineResume(ctx context.Context, out io.Writer, cfg *config.Config, checkpointPath, graphPath, providerID string, dryRun, checkpointEnabled bool, logsRoot string, maxSteps int) error {
	cp, err := checkpoint.Load(checkpointPath)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	g, err := loadAndPrepareGraph(graphPath)
	if err != nil {
		return err
	}
	if _, err := graph.ValidateOrError(g); err != nil {
		return fmt.Errorf("graph failed validation: %w", err)
	}

	eng, err := buildPipelineEngine(cfg, providerID, dryRun, checkpointEnabled, logsRoot, maxSteps, nil)
	if err != nil {
		return err
	}

	o, err := eng.Run(ctx, g, cp)
	printPipelineEvents(out, eng)
	if err != nil {
		return err
	}
	return printPipelineOutcome(out, o)
}

func printPipelineEvents(out io.Writer, eng *pipeline.Engine) {
	for _, ev := range eng.Events() {
		if ev.NodeID != "" {
			fmt.Fprintf(out, "%s  %-20s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Kind, ev.NodeID)
		} else {
			fmt.Fprintf(out, "%s  %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Kind)
		}
	}
}

func printPipelineOutcome(out io.Writer, o outcome.Outcome) error {
	fmt.Fprintf(out, "\nstatus: %s\n", o.Status)
	if o.Notes != "" {
		fmt.Fprintf(out, "notes: %s\n", o.Notes)
	}
	if o.Status == outcome.Fail {
		fmt.Fprintf(out, "failure_reason: %s\n", o.FailureReason)
		return errors.New("pipeline run failed")
	}
	return nil
}

func defaultPipelineLogsRoot(graphPath string) string {
	base := strings.TrimSuffix(filepath.Base(graphPath), filepath.Ext(graphPath))
	return filepath.Join(os.TempDir(), "nexus-pipeline-runs", base)
}
