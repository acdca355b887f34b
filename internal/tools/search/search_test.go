package search

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/agent/env"
)

func TestGrepToolFindsMatch(t *testing.T) {
	root := t.TempDir()
	e := env.NewLocal(root)
	if err := e.WriteFile(context.Background(), "a.go", []byte("package main\nfunc needle() {}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	tool := NewGrepTool(e)
	params, _ := json.Marshal(map[string]interface{}{"pattern": "needle"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success: %s", result.Content)
	}
	if !strings.Contains(result.Content, "a.go") {
		t.Fatalf("expected match in a.go, got %s", result.Content)
	}
}

func TestGlobToolFindsMatch(t *testing.T) {
	root := t.TempDir()
	e := env.NewLocal(root)
	if err := e.WriteFile(context.Background(), "x.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	tool := NewGlobTool(e)
	params, _ := json.Marshal(map[string]interface{}{"pattern": "*.txt"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Content, "x.txt") {
		t.Fatalf("expected x.txt in results, got %s", result.Content)
	}
}

func TestGrepToolRequiresPattern(t *testing.T) {
	tool := NewGrepTool(env.NewLocal(t.TempDir()))
	params, _ := json.Marshal(map[string]interface{}{"pattern": ""})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for empty pattern")
	}
}
