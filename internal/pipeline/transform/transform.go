// Package transform applies graph-wide rewrites after parsing and before
// validation: variable expansion and model-stylesheet resolution, plus
// the context preamble synthesized for codergen prompts at various
// fidelity levels.
package transform

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/pipeline/graph"
)

// Transform rewrites a parsed Graph in place before validation runs.
type Transform interface {
	Apply(g *graph.Graph) *graph.Graph
}

// VariableExpansion replaces $goal in every node's prompt with the
// graph's goal text.
type VariableExpansion struct{}

func (VariableExpansion) Apply(g *graph.Graph) *graph.Graph {
	for _, node := range g.Nodes {
		if node.Prompt != "" && strings.Contains(node.Prompt, "$goal") {
			node.Prompt = strings.ReplaceAll(node.Prompt, "$goal", g.Goal)
		}
	}
	return g
}

// Stylesheet applies the graph's model_stylesheet to resolve each node's
// LLM routing attributes.
type Stylesheet struct{}

func (Stylesheet) Apply(g *graph.Graph) *graph.Graph {
	graph.ApplyStylesheet(g)
	return g
}

// BuildPreamble synthesizes a context preamble for a codergen prompt,
// shaped by the requested fidelity mode.
func BuildPreamble(g *graph.Graph, completedNodes []string, nodeOutcomes map[string]string, contextSnapshot map[string]interface{}, fidelity string) string {
	switch {
	case fidelity == "truncate":
		return fmt.Sprintf("Pipeline: %s\nGoal: %s", g.Name, g.Goal)

	case fidelity == "compact":
		lines := []string{fmt.Sprintf("Pipeline: %s", g.Name), fmt.Sprintf("Goal: %s", g.Goal), ""}
		if len(completedNodes) > 0 {
			lines = append(lines, "Completed stages:")
			for _, nid := range completedNodes {
				status := nodeOutcomes[nid]
				if status == "" {
					status = "unknown"
				}
				lines = append(lines, fmt.Sprintf("  - %s: %s", nid, status))
			}
		}
		if len(contextSnapshot) > 0 {
			lines = append(lines, "", "Context:")
			n := 0
			for k, v := range contextSnapshot {
				if n >= 20 {
					break
				}
				lines = append(lines, fmt.Sprintf("  %s: %v", k, v))
				n++
			}
		}
		return strings.Join(lines, "\n")

	case strings.HasPrefix(fidelity, "summary:"):
		level := strings.TrimPrefix(fidelity, "summary:")
		lines := []string{fmt.Sprintf("Pipeline: %s", g.Name), fmt.Sprintf("Goal: %s", g.Goal), ""}
		if level == "medium" || level == "high" {
			var recent []string
			if level == "medium" {
				recent = lastN(completedNodes, 5)
			} else {
				recent = lastN(completedNodes, 10)
			}
			if len(recent) > 0 {
				lines = append(lines, "Recent stages:")
				for _, nid := range recent {
					status := nodeOutcomes[nid]
					if status == "" {
						status = "unknown"
					}
					lines = append(lines, fmt.Sprintf("  - %s: %s", nid, status))
				}
			}
		}
		if level == "high" && len(contextSnapshot) > 0 {
			lines = append(lines, "", "Active context:")
			n := 0
			for k, v := range contextSnapshot {
				if n >= 30 {
					break
				}
				lines = append(lines, fmt.Sprintf("  %s: %v", k, v))
				n++
			}
		} else if level == "low" {
			lines = append(lines, fmt.Sprintf("Completed %d stages.", len(completedNodes)))
		}
		return strings.Join(lines, "\n")

	default:
		return fmt.Sprintf("Pipeline: %s\nGoal: %s", g.Name, g.Goal)
	}
}

func lastN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
