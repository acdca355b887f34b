package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/pipeline/conditions"
	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// ChildExecutor runs a nested pipeline (a "stack") from its DOT file,
// sharing the parent node's context so manager.loop can observe progress
// through stack.child.* context keys.
type ChildExecutor func(ctx context.Context, childDotfile string, pc *pctx.Context) error

// ManagerLoop supervises a child pipeline by polling context keys it
// writes, matching the house-shaped stack.manager_loop node.
type ManagerLoop struct {
	ChildExecutor ChildExecutor
}

// NewManagerLoop creates a ManagerLoop handler. childExecutor may be nil,
// in which case auto-start is skipped and the loop only observes context
// state another process writes.
func NewManagerLoop(childExecutor ChildExecutor) *ManagerLoop {
	return &ManagerLoop{ChildExecutor: childExecutor}
}

func parseManagerDuration(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 45.0
	}
	if strings.HasSuffix(s, "s") {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64); err == nil {
			return v
		}
		return 45.0
	}
	if strings.HasSuffix(s, "m") {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(s, "m"), 64); err == nil {
			return v * 60
		}
		return 45.0
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return 45.0
}

func (m *ManagerLoop) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	pollIntervalStr := node.Extra["manager.poll_interval"]
	if pollIntervalStr == "" {
		pollIntervalStr = "0.1s"
	}
	pollInterval := parseManagerDuration(pollIntervalStr)

	maxCycles := 1000
	if v, ok := node.Extra["manager.max_cycles"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			maxCycles = n
		}
	}
	stopCondition := node.Extra["manager.stop_condition"]
	actionsStr := node.Extra["manager.actions"]
	if actionsStr == "" {
		actionsStr = "observe,wait"
	}
	actions := map[string]bool{}
	for _, a := range strings.Split(actionsStr, ",") {
		actions[strings.TrimSpace(a)] = true
	}

	autostart := node.Extra["stack.child_autostart"]
	if autostart == "" {
		autostart = "true"
	}
	if autostart == "true" && m.ChildExecutor != nil {
		if childDotfile := node.Extra["stack.child_dotfile"]; childDotfile != "" {
			if err := m.ChildExecutor(ctx, childDotfile, pc); err != nil {
				return outcome.Outcome{Status: outcome.Fail, FailureReason: err.Error()}, nil
			}
		}
	}

	for cycle := 1; cycle <= maxCycles; cycle++ {
		childStatus := pc.GetString("stack.child.status", "")
		if childStatus == "completed" || childStatus == "failed" {
			childOutcome := pc.GetString("stack.child.outcome", "")
			if childOutcome == "success" {
				return outcome.Outcome{Status: outcome.Success, Notes: "Child completed successfully"}, nil
			}
			if childStatus == "failed" {
				return outcome.Outcome{Status: outcome.Fail, FailureReason: "Child pipeline failed"}, nil
			}
		}

		if stopCondition != "" {
			if conditions.Evaluate(stopCondition, outcome.New(), pc) {
				return outcome.Outcome{Status: outcome.Success, Notes: "Stop condition satisfied"}, nil
			}
		}

		if actions["wait"] {
			select {
			case <-ctx.Done():
				return outcome.Outcome{Status: outcome.Fail, FailureReason: ctx.Err().Error()}, nil
			case <-time.After(time.Duration(pollInterval * float64(time.Second))):
			}
		}
	}

	return outcome.Outcome{Status: outcome.Fail, FailureReason: fmt.Sprintf("Max cycles exceeded (%d)", maxCycles)}, nil
}
