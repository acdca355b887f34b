package shell

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/agent/env"
)

func TestShellToolRunsCommand(t *testing.T) {
	tool := NewTool(env.NewLocal(t.TempDir()), 0)
	params, _ := json.Marshal(map[string]interface{}{"command": "echo hello"})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
	if !strings.Contains(result.Content, "hello") {
		t.Fatalf("expected stdout in result: %s", result.Content)
	}
}

func TestShellToolRequiresCommand(t *testing.T) {
	tool := NewTool(env.NewLocal(t.TempDir()), 0)
	params, _ := json.Marshal(map[string]interface{}{"command": ""})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for empty command")
	}
}
