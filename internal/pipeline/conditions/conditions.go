// Package conditions evaluates the boolean expressions attached to edges,
// used by the engine to pick which edge to follow out of a node.
package conditions

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// ResolveKey resolves a condition key to its string value. "outcome" and
// "preferred_label" read from the outcome; "context.X" or a bare X reads
// from the context.
func ResolveKey(key string, o outcome.Outcome, ctx *pctx.Context) string {
	switch {
	case key == "outcome":
		return string(o.Status)
	case key == "preferred_label":
		return o.PreferredLabel
	case strings.HasPrefix(key, "context."):
		bare := strings.TrimPrefix(key, "context.")
		if v, ok := ctx.Get(key); ok && v != nil {
			return toString(v)
		}
		if v, ok := ctx.Get(bare); ok && v != nil {
			return toString(v)
		}
		return ""
	default:
		if v, ok := ctx.Get(key); ok && v != nil {
			return toString(v)
		}
		return ""
	}
}

func evaluateClause(clause string, o outcome.Outcome, ctx *pctx.Context) bool {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return true
	}
	if idx := strings.Index(clause, "!="); idx >= 0 {
		key := strings.TrimSpace(clause[:idx])
		value := strings.TrimSpace(clause[idx+2:])
		return ResolveKey(key, o, ctx) != value
	}
	if idx := strings.Index(clause, "="); idx >= 0 {
		key := strings.TrimSpace(clause[:idx])
		value := strings.TrimSpace(clause[idx+1:])
		return ResolveKey(key, o, ctx) == value
	}
	return ResolveKey(clause, o, ctx) != ""
}

// Evaluate evaluates a condition expression, where clauses are joined by
// "&&". An empty condition is always true.
func Evaluate(condition string, o outcome.Outcome, ctx *pctx.Context) bool {
	if strings.TrimSpace(condition) == "" {
		return true
	}
	for _, clause := range strings.Split(condition, "&&") {
		if !evaluateClause(clause, o, ctx) {
			return false
		}
	}
	return true
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
