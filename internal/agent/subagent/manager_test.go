package subagent

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/llm"
)

type stubProvider struct {
	name    string
	respond func(req *llm.Request) *llm.Response
}

func (p *stubProvider) Name() string        { return p.name }
func (p *stubProvider) SupportsTools() bool { return true }
func (p *stubProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	return p.respond(req), nil
}
func (p *stubProvider) Stream(_ context.Context, _ *llm.Request) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent)
	close(ch)
	return ch, nil
}

func echoStub(text string) *stubProvider {
	return &stubProvider{name: "stub", respond: func(req *llm.Request) *llm.Response {
		return &llm.Response{Provider: "stub", Model: req.Model, Message: llm.TextOnly(llm.RoleAssistant, text), Finish: llm.FinishStop}
	}}
}

func newManager(t *testing.T, maxDepth int) *Manager {
	t.Helper()
	return NewManager(ManagerConfig{
		Env:             env.NewLocal(t.TempDir()),
		Registry:        agent.NewToolRegistry(),
		DefaultProvider: echoStub("subagent done"),
		DefaultModel:    "test-model",
		MaxDepth:        maxDepth,
	})
}

func TestSpawnRunsSynchronouslyAndRecordsResult(t *testing.T) {
	m := newManager(t, 1)

	h, err := m.Spawn(context.Background(), SpawnOptions{Task: "do the thing"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if h.Status() != StatusCompleted {
		t.Fatalf("expected completed status, got %v", h.Status())
	}

	result, err := m.Wait(h.ID)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !result.Success || result.Output != "subagent done" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSpawnDepthExceededFails(t *testing.T) {
	m := newManager(t, 1)

	parent, err := m.Spawn(context.Background(), SpawnOptions{Task: "root task"})
	if err != nil {
		t.Fatalf("spawn parent: %v", err)
	}

	child, err := m.Spawn(context.Background(), SpawnOptions{ParentID: parent.ID, Task: "child task"})
	if err != nil {
		t.Fatalf("spawn child: %v", err)
	}
	if child.Depth != 1 {
		t.Fatalf("expected child depth 1, got %d", child.Depth)
	}

	_, err = m.Spawn(context.Background(), SpawnOptions{ParentID: child.ID, Task: "grandchild task"})
	if err == nil {
		t.Fatal("expected depth-exceeded error for a grandchild spawn")
	}
}

func TestSendInputRejectsUnknownAndNonRunning(t *testing.T) {
	m := newManager(t, 1)

	if err := m.SendInput(context.Background(), "nope", "hi"); err == nil {
		t.Fatal("expected error for unknown agent id")
	}

	h, err := m.Spawn(context.Background(), SpawnOptions{Task: "finish quickly"})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := m.Close(h.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := m.SendInput(context.Background(), h.ID, "more work"); err == nil {
		t.Fatal("expected error sending input to a closed agent")
	}
}

func TestWaitUnknownAgentErrors(t *testing.T) {
	m := newManager(t, 1)
	if _, err := m.Wait("missing"); err == nil {
		t.Fatal("expected error waiting on an unknown agent")
	}
}
