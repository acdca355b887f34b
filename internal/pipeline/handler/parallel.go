package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// BranchResult is one parallel branch's outcome, scored for fan-in
// ranking.
type BranchResult struct {
	NodeID  string
	Outcome outcome.Outcome
	Score   float64
}

func (r BranchResult) toMap() map[string]interface{} {
	return map[string]interface{}{
		"node_id": r.NodeID,
		"status":  string(r.Outcome.Status),
		"notes":   r.Outcome.Notes,
		"score":   r.Score,
	}
}

// BranchExecutor runs one parallel branch (a sub-pipeline rooted at
// targetNodeID) and returns its outcome.
type BranchExecutor func(ctx context.Context, targetNodeID string, branchCtx *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error)

// Parallel fans out to a node's outgoing edges concurrently, bounded by
// max_parallel, and joins according to join_policy (wait_all,
// first_success, or k_of_n).
type Parallel struct {
	BranchExecutor BranchExecutor
}

// NewParallel creates a Parallel handler. A nil executor runs in
// simulation mode, returning a synthetic success per branch.
func NewParallel(executor BranchExecutor) *Parallel {
	return &Parallel{BranchExecutor: executor}
}

func (p *Parallel) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	branches := g.OutgoingEdges(node.ID)
	if len(branches) == 0 {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: "No branches for parallel node"}, nil
	}

	joinPolicy := node.Extra["join_policy"]
	if joinPolicy == "" {
		joinPolicy = "wait_all"
	}
	errorPolicy := node.Extra["error_policy"]
	if errorPolicy == "" {
		errorPolicy = "continue"
	}
	maxParallel := 4
	if v, ok := node.Extra["max_parallel"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			maxParallel = n
		}
	}

	var results []BranchResult

	if p.BranchExecutor == nil {
		for _, e := range branches {
			results = append(results, BranchResult{
				NodeID:  e.Target,
				Outcome: outcome.Outcome{Status: outcome.Success, Notes: "Simulated: " + e.Target},
			})
		}
	} else {
		branchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		sem := make(chan struct{}, maxParallel)
		resultsCh := make(chan BranchResult, len(branches))
		var wg sync.WaitGroup

		for _, e := range branches {
			e := e
			wg.Add(1)
			go func() {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				o, err := p.BranchExecutor(branchCtx, e.Target, pc.Clone(), g, logsRoot)
				if err != nil {
					o = outcome.Outcome{Status: outcome.Fail, FailureReason: err.Error()}
				}
				select {
				case resultsCh <- BranchResult{NodeID: e.Target, Outcome: o}:
				case <-branchCtx.Done():
				}
			}()
		}

		go func() {
			wg.Wait()
			close(resultsCh)
		}()

		for r := range resultsCh {
			results = append(results, r)
			if errorPolicy == "fail_fast" && r.Outcome.Status == outcome.Fail {
				cancel()
			}
		}
	}

	successCount := 0
	failCount := 0
	for _, r := range results {
		if r.Outcome.IsSuccess() {
			successCount++
		}
		if r.Outcome.Status == outcome.Fail {
			failCount++
		}
	}

	asMaps := make([]map[string]interface{}, len(results))
	for i, r := range results {
		asMaps[i] = r.toMap()
	}
	payload, _ := json.Marshal(asMaps)
	pc.Set("parallel.results", string(payload))

	switch joinPolicy {
	case "wait_all":
		if failCount == 0 {
			return outcome.Outcome{Status: outcome.Success, Notes: fmt.Sprintf("All %d branches succeeded", len(results))}, nil
		}
		return outcome.Outcome{Status: outcome.PartialSuccess, Notes: fmt.Sprintf("%d/%d branches succeeded", successCount, len(results))}, nil
	case "first_success":
		if successCount > 0 {
			return outcome.Outcome{Status: outcome.Success, Notes: "At least one branch succeeded"}, nil
		}
		return outcome.Outcome{Status: outcome.Fail, FailureReason: "All branches failed"}, nil
	case "k_of_n":
		k := 1
		if v, ok := node.Extra["k"]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}
		if successCount >= k {
			return outcome.Outcome{Status: outcome.Success, Notes: fmt.Sprintf("%d/%d branches succeeded (required %d)", successCount, len(results), k)}, nil
		}
		return outcome.Outcome{Status: outcome.Fail, FailureReason: fmt.Sprintf("Only %d/%d succeeded (required %d)", successCount, len(results), k)}, nil
	}

	return outcome.New(), nil
}

// FanIn consolidates a preceding Parallel node's branch results (read from
// the "parallel.results" context key) and selects the best by status rank
// then score.
type FanIn struct{}

func (FanIn) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	raw, ok := pc.Get("parallel.results")
	rawStr, _ := raw.(string)
	if !ok || rawStr == "" {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: "No parallel results to evaluate"}, nil
	}

	var results []map[string]interface{}
	if err := json.Unmarshal([]byte(rawStr), &results); err != nil {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: "Invalid parallel results format"}, nil
	}
	if len(results) == 0 {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: "Empty parallel results"}, nil
	}

	statusRank := map[string]int{"success": 0, "partial_success": 1, "retry": 2, "fail": 3, "skipped": 4}
	rankOf := func(r map[string]interface{}) int {
		s, _ := r["status"].(string)
		if rank, ok := statusRank[s]; ok {
			return rank
		}
		return 99
	}
	scoreOf := func(r map[string]interface{}) float64 {
		switch v := r["score"].(type) {
		case float64:
			return v
		}
		return 0
	}
	idOf := func(r map[string]interface{}) string {
		s, _ := r["node_id"].(string)
		return s
	}

	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := rankOf(results[i]), rankOf(results[j])
		if ri != rj {
			return ri < rj
		}
		si, sj := scoreOf(results[i]), scoreOf(results[j])
		if si != sj {
			return si > sj
		}
		return idOf(results[i]) < idOf(results[j])
	})

	best := results[0]
	bestID := idOf(best)
	bestStatus, _ := best["status"].(string)

	return outcome.Outcome{
		Status: outcome.Success,
		ContextUpdates: map[string]interface{}{
			"parallel.fan_in.best_id":      bestID,
			"parallel.fan_in.best_outcome": bestStatus,
		},
		Notes: "Selected best candidate: " + bestID,
	}, nil
}
