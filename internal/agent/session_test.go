package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/agent/providers"
	"github.com/haasonsaas/nexus/internal/llm"
)

type stubProvider struct {
	name    string
	respond func(req *llm.Request) *llm.Response
}

func (p *stubProvider) Name() string         { return p.name }
func (p *stubProvider) SupportsTools() bool  { return true }
func (p *stubProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	return p.respond(req), nil
}
func (p *stubProvider) Stream(_ context.Context, _ *llm.Request) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent)
	close(ch)
	return ch, nil
}

type echoTool struct{}

func (echoTool) Name() string                 { return "echo" }
func (echoTool) Description() string          { return "echoes its input back" }
func (echoTool) Schema() json.RawMessage      { return json.RawMessage(`{"type":"object"}`) }
func (echoTool) Execute(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "ok"}, nil
}

func newTestSession(t *testing.T, prov providers.Provider, opts RuntimeOptions) *Session {
	t.Helper()
	registry := NewToolRegistry()
	registry.Register(echoTool{})
	return NewSession(SessionConfig{
		ID:               "test-session",
		Provider:         prov,
		Model:            "test-model",
		Registry:         registry,
		Env:              env.NewLocal(t.TempDir()),
		BaseInstructions: "You are a coding assistant.",
		Options:          opts,
	})
}

func TestSessionNaturalCompletion(t *testing.T) {
	p := &stubProvider{name: "stub", respond: func(req *llm.Request) *llm.Response {
		return &llm.Response{
			Provider: "stub",
			Model:    req.Model,
			Message:  llm.TextOnly(llm.RoleAssistant, "done"),
			Finish:   llm.FinishStop,
		}
	}}
	s := newTestSession(t, p, DefaultRuntimeOptions())

	if err := s.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 turns (user, assistant), got %d", len(history))
	}
	if history[0].Kind != TurnUser || history[1].Kind != TurnAssistant {
		t.Fatalf("unexpected turn kinds: %v, %v", history[0].Kind, history[1].Kind)
	}
	if history[1].HasToolCalls() {
		t.Fatal("expected final assistant turn to carry no tool calls")
	}
}

func TestSessionExecutesToolThenCompletes(t *testing.T) {
	calls := 0
	p := &stubProvider{name: "stub", respond: func(req *llm.Request) *llm.Response {
		calls++
		if calls == 1 {
			return &llm.Response{
				Message: llm.Message{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
					llm.ToolCallPart(llm.ToolCall{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{}`)}),
				}},
				Finish: llm.FinishToolCalls,
			}
		}
		return &llm.Response{Message: llm.TextOnly(llm.RoleAssistant, "finished"), Finish: llm.FinishStop}
	}}
	s := newTestSession(t, p, DefaultRuntimeOptions())

	if err := s.Submit(context.Background(), "use the tool"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	history := s.History()
	// user, assistant(tool_call), tool_results, assistant(final)
	if len(history) != 4 {
		t.Fatalf("expected 4 turns, got %d: %+v", len(history), history)
	}
	if history[2].Kind != TurnToolResults {
		t.Fatalf("expected tool_results turn at index 2, got %v", history[2].Kind)
	}
	if history[2].ToolResults[0].Content != "ok" {
		t.Fatalf("expected tool result content %q, got %q", "ok", history[2].ToolResults[0].Content)
	}
}

func TestSessionLoopDetection(t *testing.T) {
	p := &stubProvider{name: "stub", respond: func(req *llm.Request) *llm.Response {
		return &llm.Response{
			Message: llm.Message{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
				llm.ToolCallPart(llm.ToolCall{ID: "call-x", Name: "echo", Arguments: json.RawMessage(`{"n":1}`)}),
			}},
			Finish: llm.FinishToolCalls,
		}
	}}
	opts := DefaultRuntimeOptions()
	opts.MaxToolRoundsPerInput = 15
	opts.LoopDetectionWindow = 10
	s := newTestSession(t, p, opts)

	if err := s.Submit(context.Background(), "loop please"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	found := false
	for _, turn := range s.History() {
		if turn.Kind == TurnSteering && strings.Contains(turn.Message.ConcatText(), "Loop detected") {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected a steering turn containing \"Loop detected\" after a repeating tool call pattern")
	}
}

func TestSessionMaxToolRoundsStopsLoop(t *testing.T) {
	p := &stubProvider{name: "stub", respond: func(req *llm.Request) *llm.Response {
		return &llm.Response{
			Message: llm.Message{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
				llm.ToolCallPart(llm.ToolCall{ID: "call-y", Name: "echo", Arguments: json.RawMessage(`{}`)}),
			}},
			Finish: llm.FinishToolCalls,
		}
	}}
	opts := DefaultRuntimeOptions()
	opts.MaxToolRoundsPerInput = 3
	opts.LoopDetectionWindow = 0
	s := newTestSession(t, p, opts)

	if err := s.Submit(context.Background(), "keep going"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	assistantTurns := 0
	for _, turn := range s.History() {
		if turn.Kind == TurnAssistant {
			assistantTurns++
		}
	}
	if assistantTurns != 3 {
		t.Fatalf("expected exactly 3 assistant turns (one per round before the bound stops the loop), got %d", assistantTurns)
	}
}
