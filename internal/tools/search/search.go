// Package search implements the grep and glob core tools, both bound to an
// execution environment's recursive search primitives.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/agent/truncate"
)

// GrepTool searches file contents using regex patterns.
type GrepTool struct {
	env env.Environment
}

// NewGrepTool creates a grep tool bound to env.
func NewGrepTool(e env.Environment) *GrepTool { return &GrepTool{env: e} }

func (t *GrepTool) Name() string        { return "grep" }
func (t *GrepTool) Description() string { return "Search file contents using regex patterns." }

func (t *GrepTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Regex pattern to search for.",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File or directory to search (default '.').",
			},
			"glob_filter": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern to filter files (e.g. '*.go').",
			},
			"case_insensitive": map[string]interface{}{
				"type":        "boolean",
				"description": "Case-insensitive search.",
			},
			"max_results": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of matches to return.",
			},
		},
		"required": []string{"pattern"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *GrepTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Pattern         string `json:"pattern"`
		Path            string `json:"path"`
		GlobFilter      string `json:"glob_filter"`
		CaseInsensitive bool   `json:"case_insensitive"`
		MaxResults      int    `json:"max_results"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return toolError("pattern is required"), nil
	}
	path := input.Path
	if path == "" {
		path = "."
	}

	out, err := t.env.Grep(ctx, input.Pattern, path, input.CaseInsensitive, input.GlobFilter, input.MaxResults)
	if err != nil {
		return toolError(err.Error()), nil
	}
	if out == "" {
		out = "(no matches)"
	}
	return &agent.ToolResult{Content: truncate.Truncate("grep", out)}, nil
}

// GlobTool finds files matching a glob pattern, sorted by modification time.
type GlobTool struct {
	env env.Environment
}

// NewGlobTool creates a glob tool bound to env.
func NewGlobTool(e env.Environment) *GlobTool { return &GlobTool{env: e} }

func (t *GlobTool) Name() string { return "glob" }
func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern, sorted by modification time."
}

func (t *GlobTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern (e.g. '**/*.go').",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Base directory to search from (default '.').",
			},
		},
		"required": []string{"pattern"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *GlobTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return toolError("pattern is required"), nil
	}
	path := input.Path
	if path == "" {
		path = "."
	}

	matches, err := t.env.Glob(ctx, input.Pattern, path)
	if err != nil {
		return toolError(err.Error()), nil
	}
	out := "(no matches)"
	if len(matches) > 0 {
		out = strings.Join(matches, "\n")
	}
	return &agent.ToolResult{Content: truncate.Truncate("glob", out)}, nil
}

func toolError(message string) *agent.ToolResult {
	payload, _ := json.Marshal(map[string]string{"error": message})
	return &agent.ToolResult{Content: string(payload), IsError: true}
}
