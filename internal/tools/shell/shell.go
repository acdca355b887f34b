// Package shell implements the shell core tool: running a command against
// an execution environment with soft-then-hard timeout escalation.
package shell

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/agent/truncate"
)

// defaultTimeoutMs is used when a call omits timeout_ms.
const defaultTimeoutMs = 30000

// Tool runs a command through an Environment and reports stdout, stderr,
// exit code, and whether the call hit its timeout.
type Tool struct {
	env              env.Environment
	defaultTimeoutMs int
}

// NewTool creates a shell tool bound to env, using defaultTimeoutMs when a
// call doesn't specify its own timeout_ms (0 selects the package default).
func NewTool(e env.Environment, defaultTimeoutMs int) *Tool {
	if defaultTimeoutMs <= 0 {
		defaultTimeoutMs = shellDefaultTimeoutMs()
	}
	return &Tool{env: e, defaultTimeoutMs: defaultTimeoutMs}
}

func shellDefaultTimeoutMs() int { return defaultTimeoutMs }

func (t *Tool) Name() string { return "shell" }

func (t *Tool) Description() string {
	return "Execute a shell command and return stdout, stderr, and exit code."
}

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute.",
			},
			"timeout_ms": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Timeout in milliseconds (default %d).", t.defaultTimeoutMs),
			},
			"description": map[string]interface{}{
				"type":        "string",
				"description": "Brief description of what this command does.",
			},
		},
		"required": []string{"command"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Command    string `json:"command"`
		TimeoutMs  int    `json:"timeout_ms"`
		WorkingDir string `json:"cwd"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if input.Command == "" {
		return toolError("command is required"), nil
	}

	timeoutMs := input.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = t.defaultTimeoutMs
	}

	result, err := t.env.ExecCommand(ctx, input.Command, timeoutMs, input.WorkingDir, nil)
	if err != nil {
		return toolError(err.Error()), nil
	}

	output := formatResult(result)
	return &agent.ToolResult{Content: truncate.Truncate("shell", output), IsError: false}, nil
}

func formatResult(r env.ExecResult) string {
	var parts []string
	if r.Stdout != "" {
		parts = append(parts, r.Stdout)
	}
	if r.Stderr != "" {
		parts = append(parts, "[stderr]\n"+r.Stderr)
	}
	if r.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("[exit code: %d]", r.ExitCode))
	}
	if r.TimedOut {
		parts = append(parts, "[timed out]")
	}
	if len(parts) == 0 {
		return "(no output)"
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}

func toolError(message string) *agent.ToolResult {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return &agent.ToolResult{Content: string(payload), IsError: true}
}
