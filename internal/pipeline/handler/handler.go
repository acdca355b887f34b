// Package handler implements the per-node-type execution logic the engine
// dispatches to: start/exit markers, conditional routers, LLM codergen
// stages, shell tool stages, human gates, and parallel fan-out/fan-in.
package handler

import (
	"context"
	"fmt"

	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// Handler executes one node and reports the Outcome that determines
// context updates, retries, and edge selection.
type Handler interface {
	Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error)

func (f HandlerFunc) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	return f(ctx, node, pc, g, logsRoot)
}

// Registry resolves a node to the Handler that should execute it: an
// explicit node.Type wins, then its shape-derived handler type, then a
// configured default.
type Registry struct {
	byType  map[string]Handler
	Default Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byType: map[string]Handler{}}
}

// Register binds handlerType to h.
func (r *Registry) Register(handlerType string, h Handler) {
	r.byType[handlerType] = h
}

// Resolve finds the Handler for node, returning an error if none is
// registered and no default is configured.
func (r *Registry) Resolve(node *graph.Node) (Handler, error) {
	if node.Type != "" {
		if h, ok := r.byType[node.Type]; ok {
			return h, nil
		}
	}
	if h, ok := r.byType[node.HandlerType()]; ok {
		return h, nil
	}
	if r.Default != nil {
		return r.Default, nil
	}
	return nil, fmt.Errorf("no handler registered for node %q (handler type %q)", node.ID, node.HandlerType())
}
