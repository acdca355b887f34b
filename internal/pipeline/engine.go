// Package pipeline implements the Pipeline Execution Engine: it drives a
// parsed Graph from its start node to its exit node, dispatching each
// node to a Handler, selecting the next edge from the handler's Outcome,
// retrying failed stages, checkpointing progress, and enforcing goal
// gates before allowing the run to finish.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/pipeline/checkpoint"
	"github.com/haasonsaas/nexus/internal/pipeline/conditions"
	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/handler"
	"github.com/haasonsaas/nexus/internal/pipeline/interview"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
	"github.com/haasonsaas/nexus/internal/pipeline/transform"
)

// Config controls one Engine's behavior.
type Config struct {
	LogsRoot          string
	DryRun            bool
	MaxSteps          int
	Interviewer       interview.Interviewer
	CodergenBackend   handler.CodergenBackend
	BranchExecutor    handler.BranchExecutor
	ChildExecutor     handler.ChildExecutor
	Env               env.Environment
	ExtraTransforms   []transform.Transform
	ExtraHandlers     map[string]handler.Handler
	CheckpointEnabled bool

	// OnEvent, when set, is called synchronously with every Event in
	// addition to it being buffered for Events(). The serve command uses
	// this to push events to connected websocket clients as they happen.
	OnEvent func(Event)
}

// Event is one step the engine recorded during a run, used for
// diagnostics, live progress reporting, and tests.
type Event struct {
	Kind      string
	NodeID    string
	Data      map[string]interface{}
	Timestamp time.Time
}

// Engine executes a parsed Graph pipeline.
type Engine struct {
	config   Config
	registry *handler.Registry
	events   []Event
}

// New builds an Engine, wiring the default handler set (start, exit,
// conditional, codergen, wait.human, parallel, parallel.fan_in, tool,
// stack.manager_loop) plus any caller-supplied extras.
func New(cfg Config) *Engine {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 1000
	}
	e := &Engine{config: cfg, registry: handler.NewRegistry()}
	e.setupHandlers()
	return e
}

func (e *Engine) setupHandlers() {
	iv := e.config.Interviewer
	if iv == nil {
		iv = interview.AutoApprove{}
	}
	e.registry.Register("start", handler.Start{})
	e.registry.Register("exit", handler.Exit{})
	e.registry.Register("conditional", handler.Conditional{})
	e.registry.Register("codergen", handler.NewCodergen(e.config.CodergenBackend))
	e.registry.Register("wait.human", handler.NewWaitForHuman(iv))
	e.registry.Register("parallel", handler.NewParallel(e.config.BranchExecutor))
	e.registry.Register("parallel.fan_in", handler.FanIn{})
	if e.config.Env != nil {
		e.registry.Register("tool", handler.NewTool(e.config.Env))
	}
	e.registry.Register("stack.manager_loop", handler.NewManagerLoop(e.config.ChildExecutor))
	for typeStr, h := range e.config.ExtraHandlers {
		e.registry.Register(typeStr, h)
	}
}

// Events returns a copy of every event emitted so far.
func (e *Engine) Events() []Event {
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

func (e *Engine) emit(kind, nodeID string, data map[string]interface{}) {
	ev := Event{Kind: kind, NodeID: nodeID, Data: data, Timestamp: time.Now()}
	e.events = append(e.events, ev)
	if e.config.OnEvent != nil {
		e.config.OnEvent(ev)
	}
}

// Run executes graph from its start node (or from resumeFrom, if given)
// until it reaches its exit node, a step limit, or an unrecoverable
// failure.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, resumeFrom *checkpoint.Checkpoint) (outcome.Outcome, error) {
	e.emit("pipeline.start", "", map[string]interface{}{"name": g.Name, "goal": g.Goal})

	var pc *pctx.Context
	completedNodes := []string{}
	nodeOutcomes := map[string]outcome.Outcome{}
	nodeRetries := map[string]int{}

	if resumeFrom != nil {
		pc = resumeFrom.RestoreContext()
		completedNodes = append(completedNodes, resumeFrom.CompletedNodes...)
		for k, v := range resumeFrom.NodeRetries {
			nodeRetries[k] = v
		}
	} else {
		pc = pctx.New(nil, nil)
		mirrorGraphAttrs(g, pc)
	}

	logsRoot := e.config.LogsRoot
	if logsRoot == "" {
		logsRoot = filepath.Join(os.TempDir(), "nexus-pipeline-run")
	}
	if err := os.MkdirAll(logsRoot, 0o755); err != nil {
		return outcome.Outcome{}, err
	}

	start := g.StartNode()
	if start == nil {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: "No start node found"}, nil
	}

	var current *graph.Node
	if resumeFrom != nil && resumeFrom.CurrentNode != "" {
		cp := g.GetNode(resumeFrom.CurrentNode)
		if cp == nil {
			return outcome.Outcome{Status: outcome.Fail, FailureReason: fmt.Sprintf("Resume node '%s' not found", resumeFrom.CurrentNode)}, nil
		}
		edges := g.OutgoingEdges(cp.ID)
		if len(edges) > 0 {
			current = g.GetNode(edges[0].Target)
		}
	} else {
		current = start
	}

	lastOutcome := outcome.Outcome{Status: outcome.Success}
	steps := 0

	for current != nil && steps < e.config.MaxSteps {
		steps++
		node := current
		isExit := node.HandlerType() == "exit"

		e.emit("node.start", node.ID, nil)
		h, err := e.registry.Resolve(node)
		if err != nil {
			return outcome.Outcome{Status: outcome.Fail, FailureReason: err.Error()}, nil
		}

		var o outcome.Outcome
		if e.config.DryRun {
			o = outcome.Outcome{Status: outcome.Success, Notes: "[dry-run] " + node.ID}
		} else {
			o = executeWithRetry(ctx, h, node, pc, g, logsRoot, nodeRetries, e.emit)
		}

		lastOutcome = o
		e.emit("node.complete", node.ID, map[string]interface{}{"status": string(o.Status)})

		completedNodes = append(completedNodes, node.ID)
		nodeOutcomes[node.ID] = o

		pc.ApplyUpdates(o.ContextUpdates)
		pc.Set("outcome", string(o.Status))
		if o.PreferredLabel != "" {
			pc.Set("preferred_label", o.PreferredLabel)
		}

		if e.config.CheckpointEnabled && logsRoot != "" {
			cp := checkpoint.FromContext(pc, node.ID, completedNodes, nodeRetries)
			if err := cp.Save(filepath.Join(logsRoot, "checkpoint.json")); err != nil {
				return outcome.Outcome{}, err
			}
		}

		if isExit {
			gateOK, failedGate := checkGoalGates(g, completedNodes, nodeOutcomes)
			if !gateOK && failedGate != nil {
				retryTarget := getRetryTarget(failedGate, g)
				if retryTarget != "" {
					current = g.GetNode(retryTarget)
					e.emit("goal_gate.retry", failedGate.ID, map[string]interface{}{"target": retryTarget})
					continue
				}
				e.emit("pipeline.error", failedGate.ID, map[string]interface{}{"error": "Goal gate unsatisfied and no retry target"})
				return outcome.Outcome{Status: outcome.Fail, FailureReason: fmt.Sprintf("Goal gate '%s' unsatisfied, no retry target", failedGate.ID)}, nil
			}
			e.emit("pipeline.complete", node.ID, nil)
			break
		}

		nextEdge := SelectEdge(node, o, pc, g)
		if nextEdge == nil {
			if o.Status == outcome.Fail {
				e.emit("pipeline.error", node.ID, map[string]interface{}{"error": "Stage failed with no outgoing fail edge"})
			}
			break
		}

		if nextEdge.LoopRestart {
			e.emit("loop.restart", node.ID, map[string]interface{}{"target": nextEdge.Target})
			target := g.GetNode(nextEdge.Target)
			if target == nil {
				target = start
			}
			current = target
			completedNodes = completedNodes[:0]
			nodeOutcomes = map[string]outcome.Outcome{}
			nodeRetries = map[string]int{}
			continue
		}

		current = g.GetNode(nextEdge.Target)
	}

	e.emit("pipeline.finalize", "", nil)
	return lastOutcome, nil
}

// RunDOT parses, transforms, validates, and executes a DOT source string.
func (e *Engine) RunDOT(ctx context.Context, dotSource string) (outcome.Outcome, error) {
	g, err := graph.Parse(dotSource)
	if err != nil {
		return outcome.Outcome{}, err
	}
	g = transform.VariableExpansion{}.Apply(g)
	g = transform.Stylesheet{}.Apply(g)
	for _, t := range e.config.ExtraTransforms {
		g = t.Apply(g)
	}
	if _, err := graph.ValidateOrError(g); err != nil {
		return outcome.Outcome{}, err
	}
	return e.Run(ctx, g, nil)
}

// SelectEdge implements the five-step edge-selection algorithm: a
// condition match wins outright; failing that, a preferred-label match;
// failing that, the handler's suggested next ids in order; failing that,
// the highest-weight unconditional edge; failing that, any edge at all.
func SelectEdge(node *graph.Node, o outcome.Outcome, pc *pctx.Context, g *graph.Graph) *graph.Edge {
	edges := g.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return nil
	}

	var conditionMatched []*graph.Edge
	for _, e := range edges {
		if e.Condition != "" && conditions.Evaluate(e.Condition, o, pc) {
			conditionMatched = append(conditionMatched, e)
		}
	}
	if len(conditionMatched) > 0 {
		return bestByWeightThenLexical(conditionMatched)
	}

	if o.PreferredLabel != "" {
		normPref := normalizeLabel(o.PreferredLabel)
		for _, e := range edges {
			if e.Label != "" && normalizeLabel(e.Label) == normPref {
				return e
			}
		}
	}

	for _, suggested := range o.SuggestedNextID {
		for _, e := range edges {
			if e.Target == suggested {
				return e
			}
		}
	}

	var unconditional []*graph.Edge
	for _, e := range edges {
		if e.Condition == "" {
			unconditional = append(unconditional, e)
		}
	}
	if len(unconditional) > 0 {
		return bestByWeightThenLexical(unconditional)
	}

	return bestByWeightThenLexical(edges)
}

func bestByWeightThenLexical(edges []*graph.Edge) *graph.Edge {
	sorted := make([]*graph.Edge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight > sorted[j].Weight
		}
		return sorted[i].Target < sorted[j].Target
	})
	return sorted[0]
}

var (
	acceleratorBracketPrefix = regexp.MustCompile(`^\[\w\]\s+`)
	acceleratorParenPrefix   = regexp.MustCompile(`^\w\)\s+`)
	acceleratorDashPrefix    = regexp.MustCompile(`^\w\s+-\s+`)
)

func normalizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	label = acceleratorBracketPrefix.ReplaceAllString(label, "")
	label = acceleratorParenPrefix.ReplaceAllString(label, "")
	label = acceleratorDashPrefix.ReplaceAllString(label, "")
	return label
}

// checkGoalGates walks completedNodes in execution order (not
// nodeOutcomes directly, whose Go map iteration order is randomized) so
// the first unsatisfied gate it reports - and the retry target derived
// from it - is deterministic across runs of the same graph.
func checkGoalGates(g *graph.Graph, completedNodes []string, nodeOutcomes map[string]outcome.Outcome) (bool, *graph.Node) {
	for _, nodeID := range completedNodes {
		o, ok := nodeOutcomes[nodeID]
		if !ok {
			continue
		}
		node := g.GetNode(nodeID)
		if node != nil && node.GoalGate && !o.IsSuccess() {
			return false, node
		}
	}
	return true, nil
}

func getRetryTarget(node *graph.Node, g *graph.Graph) string {
	if node.RetryTarget != "" {
		if _, ok := g.Nodes[node.RetryTarget]; ok {
			return node.RetryTarget
		}
	}
	if node.FallbackRetryTarget != "" {
		if _, ok := g.Nodes[node.FallbackRetryTarget]; ok {
			return node.FallbackRetryTarget
		}
	}
	if g.RetryTarget != "" {
		if _, ok := g.Nodes[g.RetryTarget]; ok {
			return g.RetryTarget
		}
	}
	if g.FallbackRetryTarget != "" {
		if _, ok := g.Nodes[g.FallbackRetryTarget]; ok {
			return g.FallbackRetryTarget
		}
	}
	return ""
}

func mirrorGraphAttrs(g *graph.Graph, pc *pctx.Context) {
	pc.Set("pipeline.name", g.Name)
	pc.Set("pipeline.goal", g.Goal)
	if g.Goal != "" {
		pc.Set("goal", g.Goal)
	}
}

type emitFunc func(kind, nodeID string, data map[string]interface{})

func executeWithRetry(ctx context.Context, h handler.Handler, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string, nodeRetries map[string]int, emit emitFunc) outcome.Outcome {
	maxAttempts := max(node.MaxRetries, g.DefaultMaxRetry) + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		o, err := h.Execute(ctx, node, pc, g, logsRoot)
		if err != nil {
			if attempt < maxAttempts {
				nodeRetries[node.ID]++
				emit("node.retry", node.ID, map[string]interface{}{"attempt": attempt, "reason": err.Error()})
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return outcome.Outcome{Status: outcome.Fail, FailureReason: err.Error()}
		}

		if o.IsSuccess() {
			delete(nodeRetries, node.ID)
			return o
		}

		if o.Status == outcome.Retry {
			if attempt < maxAttempts {
				nodeRetries[node.ID]++
				emit("node.retry", node.ID, map[string]interface{}{"attempt": attempt, "reason": "retry requested"})
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if node.AllowPartial {
				return outcome.Outcome{Status: outcome.PartialSuccess, Notes: "retries exhausted, partial accepted"}
			}
			return outcome.Outcome{Status: outcome.Fail, FailureReason: "max retries exceeded"}
		}

		if o.Status == outcome.Fail {
			return o
		}
	}

	return outcome.Outcome{Status: outcome.Fail, FailureReason: "max retries exceeded"}
}
