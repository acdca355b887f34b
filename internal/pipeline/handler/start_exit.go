package handler

import (
	"context"

	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// Start is the no-op handler for the pipeline's entry node.
type Start struct{}

func (Start) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	return outcome.New(), nil
}

// Exit is the no-op handler for the pipeline's terminal node. The engine
// checks goal gates before treating reaching this node as completion.
type Exit struct{}

func (Exit) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	return outcome.New(), nil
}

// Conditional is a no-op handler; the routing decision for a diamond node
// lives entirely in the engine's edge-selection logic, which evaluates
// each outgoing edge's condition against the outcome and context.
type Conditional struct{}

func (Conditional) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	return outcome.New(), nil
}
