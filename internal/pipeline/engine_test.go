package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/handler"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

func parseOrFail(t *testing.T, dot string) *graph.Graph {
	t.Helper()
	g, err := graph.Parse(dot)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return g
}

func TestEngineSimpleLinearPipelineDryRun(t *testing.T) {
	dot := `digraph p {
		Start [shape=Mdiamond]
		Task [shape=box]
		Exit [shape=Msquare]
		Start -> Task -> Exit
	}`
	g := parseOrFail(t, dot)

	logsRoot := t.TempDir()
	e := New(Config{LogsRoot: logsRoot, DryRun: true, CheckpointEnabled: true})

	result, err := e.Run(context.Background(), g, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != outcome.Success {
		t.Fatalf("expected success, got %v", result.Status)
	}

	var kinds []string
	nodeStartCompletePairs := 0
	for _, ev := range e.Events() {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == "node.start" {
			nodeStartCompletePairs++
		}
	}
	if kinds[0] != "pipeline.start" {
		t.Fatalf("expected first event pipeline.start, got %v", kinds)
	}
	if kinds[len(kinds)-1] != "pipeline.finalize" {
		t.Fatalf("expected last event pipeline.finalize, got %v", kinds)
	}
	if nodeStartCompletePairs != 3 {
		t.Fatalf("expected 3 node.start events (Start, Task, Exit), got %d", nodeStartCompletePairs)
	}

	if _, err := os.Stat(filepath.Join(logsRoot, "checkpoint.json")); err != nil {
		t.Fatalf("expected checkpoint.json to exist: %v", err)
	}
}

// scriptedBackend returns a scripted sequence of outcomes per node id,
// repeating the last entry once the script for that node is exhausted.
type scriptedBackend struct {
	scripts map[string][]outcome.Status
	calls   map[string]int
}

func newScriptedBackend(scripts map[string][]outcome.Status) *scriptedBackend {
	return &scriptedBackend{scripts: scripts, calls: map[string]int{}}
}

func (b *scriptedBackend) Run(ctx context.Context, node *graph.Node, prompt string, pc *pctx.Context) (string, *outcome.Outcome, error) {
	script := b.scripts[node.ID]
	idx := b.calls[node.ID]
	b.calls[node.ID] = idx + 1
	if idx >= len(script) {
		idx = len(script) - 1
	}
	status := outcome.Success
	if len(script) > 0 {
		status = script[idx]
	}
	return "", &outcome.Outcome{Status: status}, nil
}

func TestEngineConditionalRouting(t *testing.T) {
	dot := `digraph p {
		Start [shape=Mdiamond]
		Task [shape=box, max_retries=0]
		FailExit [shape=Msquare]
		SuccessExit [shape=Msquare]
		Start -> Task
		Task -> FailExit [condition="outcome=fail"]
		Task -> SuccessExit [condition="outcome=success"]
	}`
	g := parseOrFail(t, dot)

	backend := newScriptedBackend(map[string][]outcome.Status{"Task": {outcome.Fail}})
	e := New(Config{LogsRoot: t.TempDir(), CodergenBackend: backend})

	result, err := e.Run(context.Background(), g, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != outcome.Fail {
		t.Fatalf("expected fail outcome to propagate, got %v", result.Status)
	}

	var completedLast string
	for _, ev := range e.Events() {
		if ev.Kind == "pipeline.complete" {
			completedLast = ev.NodeID
		}
	}
	if completedLast != "FailExit" {
		t.Fatalf("expected the fail-path edge to be taken to FailExit, got completion at %q", completedLast)
	}
}

func TestEngineGoalGateRetry(t *testing.T) {
	dot := `digraph p {
		Start [shape=Mdiamond]
		Plan [shape=box]
		Implement [shape=box, goal_gate=true, retry_target="Plan", max_retries=0]
		Exit [shape=Msquare]
		Start -> Plan -> Implement -> Exit
	}`
	g := parseOrFail(t, dot)

	backend := newScriptedBackend(map[string][]outcome.Status{
		"Implement": {outcome.Fail, outcome.Success},
	})
	e := New(Config{LogsRoot: t.TempDir(), CodergenBackend: backend})

	result, err := e.Run(context.Background(), g, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != outcome.Success {
		t.Fatalf("expected eventual success, got %v: %s", result.Status, result.FailureReason)
	}

	sawGoalGateRetry := false
	implementCount := 0
	for _, ev := range e.Events() {
		if ev.Kind == "goal_gate.retry" && ev.Data["target"] == "Plan" {
			sawGoalGateRetry = true
		}
		if ev.Kind == "node.complete" && ev.NodeID == "Implement" {
			implementCount++
		}
	}
	if !sawGoalGateRetry {
		t.Fatal("expected at least one goal_gate.retry event targeting Plan")
	}
	if implementCount < 2 {
		t.Fatalf("expected Implement to complete at least twice, got %d", implementCount)
	}
}

func TestSelectEdgeTiesBreakByWeightThenTarget(t *testing.T) {
	g := graph.New()
	g.Nodes["A"] = graph.NewNode("A")
	g.Nodes["B"] = graph.NewNode("B")
	g.Nodes["C"] = graph.NewNode("C")
	g.Edges = []*graph.Edge{
		{Source: "A", Target: "C", Weight: 1, Extra: map[string]string{}},
		{Source: "A", Target: "B", Weight: 1, Extra: map[string]string{}},
	}

	pc := pctx.New(nil, nil)
	edge := SelectEdge(g.Nodes["A"], outcome.New(), pc, g)
	if edge == nil || edge.Target != "B" {
		t.Fatalf("expected tie broken toward lexically-first target B, got %v", edge)
	}
}

func TestRetryExhaustionWithoutPartialFails(t *testing.T) {
	g := graph.New()
	g.Nodes["A"] = graph.NewNode("A")
	g.Nodes["A"].MaxRetries = 2
	retries := map[string]int{}
	always := handler.HandlerFunc(func(ctx context.Context, node *graph.Node, pc *pctx.Context, gr *graph.Graph, logsRoot string) (outcome.Outcome, error) {
		return outcome.Outcome{Status: outcome.Retry}, nil
	})
	result := executeWithRetry(context.Background(), always, g.Nodes["A"], pctx.New(nil, nil), g, t.TempDir(), retries, func(string, string, map[string]interface{}) {})
	if result.Status != outcome.Fail || result.FailureReason != "max retries exceeded" {
		t.Fatalf("expected exhausted retries to fail with the documented reason, got %+v", result)
	}
}

// TestExecuteWithRetryUsesMaxOfNodeAndGraphDefault pins effectiveAttempts
// to max(node.MaxRetries, graph.DefaultMaxRetry) + 1: a node whose own
// MaxRetries is lower than the graph default still gets the graph's
// larger retry budget, not the node's.
func TestExecuteWithRetryUsesMaxOfNodeAndGraphDefault(t *testing.T) {
	g := graph.New()
	g.DefaultMaxRetry = 5
	g.Nodes["A"] = graph.NewNode("A")
	g.Nodes["A"].MaxRetries = 2

	attempts := 0
	always := handler.HandlerFunc(func(ctx context.Context, node *graph.Node, pc *pctx.Context, gr *graph.Graph, logsRoot string) (outcome.Outcome, error) {
		attempts++
		return outcome.Outcome{Status: outcome.Retry}, nil
	})

	retries := map[string]int{}
	result := executeWithRetry(context.Background(), always, g.Nodes["A"], pctx.New(nil, nil), g, t.TempDir(), retries, func(string, string, map[string]interface{}) {})
	if attempts != 6 {
		t.Fatalf("expected max(2, 5)+1 = 6 attempts, got %d", attempts)
	}
	if result.Status != outcome.Fail {
		t.Fatalf("expected exhausted retries to fail, got %+v", result)
	}
}

// TestCheckGoalGatesIsDeterministic asserts the first unsatisfied gate is
// always the one earliest in execution order, not whichever the (random)
// map iteration happens to visit first.
func TestCheckGoalGatesIsDeterministic(t *testing.T) {
	g := graph.New()
	g.Nodes["First"] = graph.NewNode("First")
	g.Nodes["First"].GoalGate = true
	g.Nodes["Second"] = graph.NewNode("Second")
	g.Nodes["Second"].GoalGate = true

	completedNodes := []string{"First", "Second"}
	nodeOutcomes := map[string]outcome.Outcome{
		"First":  {Status: outcome.Fail},
		"Second": {Status: outcome.Fail},
	}

	for i := 0; i < 20; i++ {
		ok, failed := checkGoalGates(g, completedNodes, nodeOutcomes)
		if ok || failed == nil || failed.ID != "First" {
			t.Fatalf("expected deterministic failure on the earliest unsatisfied gate 'First', got %v", failed)
		}
	}
}
