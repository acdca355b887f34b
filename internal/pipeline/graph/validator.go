package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies a Diagnostic's impact on whether the pipeline can run.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is one lint finding produced by Validate.
type Diagnostic struct {
	Rule     string
	Severity Severity
	Message  string
	NodeID   string
	Edge     [2]string
	Fix      string
}

// ValidationError wraps the error-severity diagnostics from a failed
// Validate call.
type ValidationError struct {
	Diagnostics []Diagnostic
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = fmt.Sprintf("[%s] %s", d.Rule, d.Message)
	}
	return strings.Join(parts, "; ")
}

var validFidelities = map[string]bool{
	"full": true, "truncate": true, "compact": true,
	"summary:low": true, "summary:medium": true, "summary:high": true,
}

type lintRule func(g *Graph) []Diagnostic

func checkStartNode(g *Graph) []Diagnostic {
	var starts []*Node
	for _, n := range g.Nodes {
		if n.HandlerType() == "start" {
			starts = append(starts, n)
		}
	}
	if len(starts) == 0 {
		return []Diagnostic{{Rule: "start_node", Severity: SeverityError,
			Message: "Pipeline must have exactly one start node (shape=Mdiamond). Found none.",
			Fix:     "Add a node with shape=Mdiamond"}}
	}
	if len(starts) > 1 {
		ids := make([]string, len(starts))
		for i, n := range starts {
			ids[i] = n.ID
		}
		sort.Strings(ids)
		return []Diagnostic{{Rule: "start_node", Severity: SeverityError,
			Message: fmt.Sprintf("Pipeline must have exactly one start node. Found %d: %s.", len(starts), strings.Join(ids, ", ")),
			Fix:     "Remove extra start nodes"}}
	}
	return nil
}

func checkTerminalNode(g *Graph) []Diagnostic {
	for _, n := range g.Nodes {
		if n.HandlerType() == "exit" {
			return nil
		}
	}
	return []Diagnostic{{Rule: "terminal_node", Severity: SeverityError,
		Message: "Pipeline must have at least one terminal node (shape=Msquare). Found none.",
		Fix:     "Add a node with shape=Msquare"}}
}

func checkReachability(g *Graph) []Diagnostic {
	start := g.StartNode()
	if start == nil {
		return nil
	}
	visited := map[string]bool{}
	stack := []string{start.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, e := range g.OutgoingEdges(id) {
			if _, ok := g.Nodes[e.Target]; ok {
				stack = append(stack, e.Target)
			}
		}
	}
	var unreachable []string
	for id := range g.Nodes {
		if !visited[id] {
			unreachable = append(unreachable, id)
		}
	}
	if len(unreachable) == 0 {
		return nil
	}
	sort.Strings(unreachable)
	return []Diagnostic{{Rule: "reachability", Severity: SeverityError,
		Message: "Unreachable nodes: " + strings.Join(unreachable, ", "),
		Fix:     "Add edges from reachable nodes or remove unreachable ones"}}
}

func checkEdgeTargetExists(g *Graph) []Diagnostic {
	var diags []Diagnostic
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.Source]; !ok {
			diags = append(diags, Diagnostic{Rule: "edge_target_exists", Severity: SeverityError,
				Message: fmt.Sprintf("Edge source '%s' does not exist", e.Source), Edge: [2]string{e.Source, e.Target}})
		}
		if _, ok := g.Nodes[e.Target]; !ok {
			diags = append(diags, Diagnostic{Rule: "edge_target_exists", Severity: SeverityError,
				Message: fmt.Sprintf("Edge target '%s' does not exist", e.Target), Edge: [2]string{e.Source, e.Target}})
		}
	}
	return diags
}

func checkStartNoIncoming(g *Graph) []Diagnostic {
	start := g.StartNode()
	if start == nil {
		return nil
	}
	incoming := g.IncomingEdges(start.ID)
	if len(incoming) == 0 {
		return nil
	}
	return []Diagnostic{{Rule: "start_no_incoming", Severity: SeverityError,
		Message: fmt.Sprintf("Start node '%s' must have no incoming edges, found %d", start.ID, len(incoming)),
		NodeID:  start.ID}}
}

func checkExitNoOutgoing(g *Graph) []Diagnostic {
	exit := g.ExitNode()
	if exit == nil {
		return nil
	}
	outgoing := g.OutgoingEdges(exit.ID)
	if len(outgoing) == 0 {
		return nil
	}
	return []Diagnostic{{Rule: "exit_no_outgoing", Severity: SeverityError,
		Message: fmt.Sprintf("Exit node '%s' must have no outgoing edges, found %d", exit.ID, len(outgoing)),
		NodeID:  exit.ID}}
}

func checkFidelityValid(g *Graph) []Diagnostic {
	var diags []Diagnostic
	for _, n := range g.Nodes {
		if n.Fidelity != "" && !validFidelities[n.Fidelity] {
			diags = append(diags, Diagnostic{Rule: "fidelity_valid", Severity: SeverityWarning,
				Message: fmt.Sprintf("Node '%s' has invalid fidelity '%s'", n.ID, n.Fidelity),
				NodeID:  n.ID, Fix: "Use one of: compact, full, summary:high, summary:low, summary:medium, truncate"})
		}
	}
	return diags
}

func checkRetryTargetExists(g *Graph) []Diagnostic {
	var diags []Diagnostic
	for _, n := range g.Nodes {
		if n.RetryTarget != "" {
			if _, ok := g.Nodes[n.RetryTarget]; !ok {
				diags = append(diags, Diagnostic{Rule: "retry_target_exists", Severity: SeverityWarning,
					Message: fmt.Sprintf("Node '%s' retry_target '%s' does not exist", n.ID, n.RetryTarget), NodeID: n.ID})
			}
		}
		if n.FallbackRetryTarget != "" {
			if _, ok := g.Nodes[n.FallbackRetryTarget]; !ok {
				diags = append(diags, Diagnostic{Rule: "retry_target_exists", Severity: SeverityWarning,
					Message: fmt.Sprintf("Node '%s' fallback_retry_target '%s' does not exist", n.ID, n.FallbackRetryTarget), NodeID: n.ID})
			}
		}
	}
	return diags
}

func checkGoalGateHasRetry(g *Graph) []Diagnostic {
	var diags []Diagnostic
	for _, n := range g.Nodes {
		if n.GoalGate && n.RetryTarget == "" && n.FallbackRetryTarget == "" {
			diags = append(diags, Diagnostic{Rule: "goal_gate_has_retry", Severity: SeverityWarning,
				Message: fmt.Sprintf("Node '%s' has goal_gate=true but no retry_target or fallback_retry_target", n.ID),
				NodeID:  n.ID, Fix: "Add retry_target attribute"})
		}
	}
	return diags
}

func checkPromptOnLLMNodes(g *Graph) []Diagnostic {
	var diags []Diagnostic
	for _, n := range g.Nodes {
		if n.HandlerType() == "codergen" && n.Prompt == "" && n.Label == "" {
			diags = append(diags, Diagnostic{Rule: "prompt_on_llm_nodes", Severity: SeverityWarning,
				Message: fmt.Sprintf("Node '%s' resolves to codergen handler but has no prompt or label", n.ID),
				NodeID:  n.ID, Fix: "Add a prompt or label attribute"})
		}
	}
	return diags
}

var builtinRules = []lintRule{
	checkStartNode,
	checkTerminalNode,
	checkReachability,
	checkEdgeTargetExists,
	checkStartNoIncoming,
	checkExitNoOutgoing,
	checkFidelityValid,
	checkRetryTargetExists,
	checkGoalGateHasRetry,
	checkPromptOnLLMNodes,
}

// LintRule is an extra, caller-supplied validation pass.
type LintRule interface {
	Apply(g *Graph) []Diagnostic
}

// Validate runs every built-in rule plus any extra rules against g.
func Validate(g *Graph, extra ...LintRule) []Diagnostic {
	var diags []Diagnostic
	for _, rule := range builtinRules {
		diags = append(diags, rule(g)...)
	}
	for _, rule := range extra {
		diags = append(diags, rule.Apply(g)...)
	}
	return diags
}

// ValidateOrError validates g and returns a *ValidationError if any
// error-severity diagnostics were found.
func ValidateOrError(g *Graph, extra ...LintRule) ([]Diagnostic, error) {
	diags := Validate(g, extra...)
	var errs []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) > 0 {
		return diags, &ValidationError{Diagnostics: errs}
	}
	return diags, nil
}
