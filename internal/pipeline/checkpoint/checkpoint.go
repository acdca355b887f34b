// Package checkpoint persists and restores pipeline execution state so a
// run can resume after a crash or an operator-requested pause.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// Checkpoint captures everything the engine needs to resume a run: which
// node it was on, which nodes had already completed, per-node retry
// counts, and the full context state.
type Checkpoint struct {
	Timestamp      float64                `json:"timestamp"`
	CurrentNode    string                 `json:"current_node"`
	CompletedNodes []string               `json:"completed_nodes"`
	NodeRetries    map[string]int         `json:"node_retries"`
	ContextValues  map[string]interface{} `json:"context"`
	Logs           []string               `json:"logs"`
}

// Save serializes the checkpoint to path as JSON, creating parent
// directories as needed.
func (c *Checkpoint) Save(path string) error {
	if c.Timestamp == 0 {
		c.Timestamp = float64(time.Now().UnixNano()) / 1e9
	}
	dir := filepath.Dir(path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load deserializes a checkpoint from path.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Checkpoint{
		CompletedNodes: []string{},
		NodeRetries:    map[string]int{},
		ContextValues:  map[string]interface{}{},
		Logs:           []string{},
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FromContext snapshots the current execution state into a new Checkpoint.
func FromContext(ctx *pctx.Context, currentNode string, completedNodes []string, nodeRetries map[string]int) *Checkpoint {
	completed := make([]string, len(completedNodes))
	copy(completed, completedNodes)
	retries := make(map[string]int, len(nodeRetries))
	for k, v := range nodeRetries {
		retries[k] = v
	}
	return &Checkpoint{
		Timestamp:      float64(time.Now().UnixNano()) / 1e9,
		CurrentNode:    currentNode,
		CompletedNodes: completed,
		NodeRetries:    retries,
		ContextValues:  ctx.Snapshot(),
		Logs:           ctx.Logs(),
	}
}

// RestoreContext rebuilds a Context from the checkpoint's saved state.
func (c *Checkpoint) RestoreContext() *pctx.Context {
	return pctx.New(c.ContextValues, c.Logs)
}
