package handler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// CodergenBackend executes the actual LLM call for a codergen node. It
// returns either the raw response text or a fully-formed Outcome (e.g. a
// backend that itself decides the node failed).
type CodergenBackend interface {
	Run(ctx context.Context, node *graph.Node, prompt string, pc *pctx.Context) (string, *outcome.Outcome, error)
}

// ExpandVariables substitutes $goal in prompt text with the graph's goal.
func ExpandVariables(text string, g *graph.Graph) string {
	return strings.ReplaceAll(text, "$goal", g.Goal)
}

func writeStatus(stageDir string, o outcome.Outcome) error {
	data := map[string]interface{}{
		"status":          string(o.Status),
		"notes":           o.Notes,
		"failure_reason":  o.FailureReason,
		"context_updates": o.ContextUpdates,
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stageDir, "status.json"), payload, 0o644)
}

// Codergen is the default handler for LLM task nodes: it renders the
// node's prompt, invokes an optional backend, and logs the prompt and
// response for audit.
type Codergen struct {
	Backend CodergenBackend
}

// NewCodergen creates a Codergen handler. backend may be nil, in which
// case the handler simulates a response — useful for dry runs and tests.
func NewCodergen(backend CodergenBackend) *Codergen {
	return &Codergen{Backend: backend}
}

func (c *Codergen) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	prompt := node.Prompt
	if prompt == "" {
		prompt = node.Label
	}
	prompt = ExpandVariables(prompt, g)

	stageDir := filepath.Join(logsRoot, node.ID)
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return outcome.Outcome{}, err
	}
	if err := os.WriteFile(filepath.Join(stageDir, "prompt.md"), []byte(prompt), 0o644); err != nil {
		return outcome.Outcome{}, err
	}

	var responseText string
	if c.Backend != nil {
		text, forced, err := c.Backend.Run(ctx, node, prompt, pc)
		if err != nil {
			o := outcome.Outcome{Status: outcome.Fail, FailureReason: err.Error()}
			_ = writeStatus(stageDir, o)
			return o, nil
		}
		if forced != nil {
			_ = writeStatus(stageDir, *forced)
			return *forced, nil
		}
		responseText = text
	} else {
		responseText = "[Simulated] Response for stage: " + node.ID
	}

	if err := os.WriteFile(filepath.Join(stageDir, "response.md"), []byte(responseText), 0o644); err != nil {
		return outcome.Outcome{}, err
	}

	truncated := responseText
	if len(truncated) > 200 {
		truncated = truncated[:200]
	}
	o := outcome.Outcome{
		Status: outcome.Success,
		Notes:  "Stage completed: " + node.ID,
		ContextUpdates: map[string]interface{}{
			"last_stage":    node.ID,
			"last_response": truncated,
		},
	}
	_ = writeStatus(stageDir, o)
	return o, nil
}
