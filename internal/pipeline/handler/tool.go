package handler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// Tool executes an external command configured via a node's tool_command
// extra attribute, running it through the session's execution environment
// so it gets the same timeout escalation as the shell core tool.
type Tool struct {
	Env env.Environment
}

// NewTool creates a Tool handler bound to e.
func NewTool(e env.Environment) *Tool { return &Tool{Env: e} }

func parseTimeout(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 30.0
	}
	if strings.HasSuffix(s, "s") {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64); err == nil {
			return v
		}
		return 30.0
	}
	if strings.HasSuffix(s, "m") {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(s, "m"), 64); err == nil {
			return v * 60
		}
		return 30.0
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return 30.0
}

func (t *Tool) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	command := node.Extra["tool_command"]
	if command == "" {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: "No tool_command specified"}, nil
	}

	timeoutStr := node.Timeout
	if timeoutStr == "" {
		timeoutStr = "30s"
	}
	timeoutSeconds := parseTimeout(timeoutStr)
	timeoutMs := int(timeoutSeconds * 1000)

	result, err := t.Env.ExecCommand(ctx, command, timeoutMs, "", nil)
	if err != nil {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: err.Error()}, nil
	}

	stageDir := filepath.Join(logsRoot, node.ID)
	if mkErr := os.MkdirAll(stageDir, 0o755); mkErr == nil {
		content := result.Stdout
		if result.Stderr != "" {
			content += "\n--- STDERR ---\n" + result.Stderr
		}
		_ = os.WriteFile(filepath.Join(stageDir, "tool_output.txt"), []byte(content), 0o644)
	}

	if result.TimedOut {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: fmt.Sprintf("Command timed out after %gs", timeoutSeconds)}, nil
	}
	if result.ExitCode != 0 {
		return outcome.Outcome{
			Status:         outcome.Fail,
			FailureReason:  fmt.Sprintf("Command exited with code %d", result.ExitCode),
			ContextUpdates: map[string]interface{}{"tool.output": result.Stdout},
		}, nil
	}

	return outcome.Outcome{
		Status:         outcome.Success,
		Notes:          "Tool completed: " + command,
		ContextUpdates: map[string]interface{}{"tool.output": result.Stdout},
	}, nil
}
