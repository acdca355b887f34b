package subagent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/agent/providers"
)

// Status is a subagent handle's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusClosed    Status = "closed"
)

// Result is the recorded outcome of a spawned subagent's run.
type Result struct {
	Output    string
	Success   bool
	TurnsUsed int
	Error     string
}

// Handle wraps one child session under supervision: its depth in the
// spawn tree, its current status, and, once it has run, its Result.
type Handle struct {
	ID       string
	ParentID string
	Depth    int
	AgentID  string

	session *agent.Session

	mu     sync.Mutex
	status Status
	result *Result
}

// Status returns the handle's current lifecycle state.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// SpawnOptions configures one Spawn call.
type SpawnOptions struct {
	// ParentID is the spawning agent's handle id, or "" for a top-level
	// spawn. Depth is computed by walking parent back-references from
	// here.
	ParentID string

	// AgentID names the catalog entry (from an AgentManifest) this
	// subagent should run as. Definition is used instead when set
	// directly, bypassing the catalog.
	AgentID    string
	Definition *AgentDefinition

	// Task is the initial user input submitted to the child session.
	Task string

	// Model and Provider override the resolved AgentDefinition's, letting
	// a caller pin a spawn to a cheaper or more capable model without
	// editing the catalog entry.
	Model    string
	Provider providers.Provider
}

// ManagerConfig wires the shared resources every spawned child session
// inherits: its execution environment, tool registry, and a default
// provider used when a spawn doesn't specify one.
type ManagerConfig struct {
	Env             env.Environment
	Registry        *agent.ToolRegistry
	DefaultProvider providers.Provider
	DefaultModel    string
	Manifest        *AgentManifest

	// MaxDepth bounds how deeply subagents may spawn further subagents.
	// A spawn whose computed depth exceeds this fails with a "depth
	// exceeded" error. Zero means only top-level (depth 0) spawns are
	// allowed to spawn children (depth 1 is already over budget) — most
	// callers want at least 1.
	MaxDepth int
}

// Manager owns the map of agent-id to Handle, tracking parent/child
// relationships so spawn depth can be bound.
type Manager struct {
	cfg ManagerConfig

	mu      sync.Mutex
	handles map[string]*Handle
	seq     int
}

// NewManager builds a Manager from cfg.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{cfg: cfg, handles: map[string]*Handle{}}
}

func (m *Manager) nextID() string {
	m.seq++
	return fmt.Sprintf("sub-%d", m.seq)
}

// depthOf returns the depth a child of parentID would run at: 0 for a
// top-level spawn, or one past its parent's recorded depth.
func (m *Manager) depthOf(parentID string) (int, error) {
	if parentID == "" {
		return 0, nil
	}
	parent, ok := m.handles[parentID]
	if !ok {
		return 0, fmt.Errorf("parent agent %q not found", parentID)
	}
	return parent.Depth + 1, nil
}

// resolveDefinition looks up opts.Definition directly, or opts.AgentID in
// the configured manifest.
func (m *Manager) resolveDefinition(opts SpawnOptions) (*AgentDefinition, error) {
	if opts.Definition != nil {
		return opts.Definition, nil
	}
	if opts.AgentID != "" {
		if m.cfg.Manifest == nil {
			return nil, fmt.Errorf("agent %q not found: no manifest configured", opts.AgentID)
		}
		def := m.cfg.Manifest.Find(opts.AgentID)
		if def == nil {
			return nil, fmt.Errorf("agent %q not found in manifest", opts.AgentID)
		}
		return def, nil
	}
	return &AgentDefinition{}, nil
}

// Spawn creates a child session sharing the parent's execution
// environment and tool registry, runs opts.Task to completion
// synchronously, and records the result. Spawning past MaxDepth fails
// with a "depth exceeded" error before any session is created.
func (m *Manager) Spawn(ctx context.Context, opts SpawnOptions) (*Handle, error) {
	m.mu.Lock()
	depth, err := m.depthOf(opts.ParentID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if depth > m.cfg.MaxDepth {
		m.mu.Unlock()
		return nil, fmt.Errorf("subagent depth exceeded: depth %d exceeds max_subagent_depth %d", depth, m.cfg.MaxDepth)
	}
	id := m.nextID()
	m.mu.Unlock()

	def, err := m.resolveDefinition(opts)
	if err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		provider = m.cfg.DefaultProvider
	}
	model := opts.Model
	if model == "" {
		model = def.Model
	}
	if model == "" {
		model = m.cfg.DefaultModel
	}

	session := agent.NewSession(agent.SessionConfig{
		ID:               id,
		Provider:         provider,
		Model:            model,
		Registry:         m.cfg.Registry,
		Env:              m.cfg.Env,
		BaseInstructions: def.SystemPrompt,
	})

	handle := &Handle{ID: id, ParentID: opts.ParentID, Depth: depth, AgentID: opts.AgentID, session: session, status: StatusRunning}
	m.mu.Lock()
	m.handles[id] = handle
	m.mu.Unlock()

	m.run(ctx, handle, opts.Task)
	return handle, nil
}

// run drives the handle's session to completion and records the result.
// spawn's task always runs to completion before Spawn returns, per the
// manager's synchronous design — there is no separate "start" step.
func (m *Manager) run(ctx context.Context, h *Handle, task string) {
	err := h.session.Submit(ctx, task)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.status = StatusFailed
		h.result = &Result{Success: false, Error: err.Error(), TurnsUsed: turnsUsed(h.session)}
		return
	}
	h.status = StatusCompleted
	h.result = &Result{
		Success:   true,
		Output:    lastAssistantText(h.session),
		TurnsUsed: turnsUsed(h.session),
	}
}

func turnsUsed(s *agent.Session) int {
	n := 0
	for _, t := range s.History() {
		if t.Kind == agent.TurnAssistant {
			n++
		}
	}
	return n
}

func lastAssistantText(s *agent.Session) string {
	history := s.History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Kind == agent.TurnAssistant {
			return history[i].Message.ConcatText()
		}
	}
	return ""
}

// SendInput submits additional input to an already-spawned agent's
// session. It rejects unknown agent ids and agents that are no longer
// running (completed, failed, or closed).
func (m *Manager) SendInput(ctx context.Context, agentID, text string) error {
	m.mu.Lock()
	h, ok := m.handles[agentID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("subagent %q not found", agentID)
	}
	if h.Status() != StatusRunning {
		return fmt.Errorf("subagent %q is not running (status: %s)", agentID, h.Status())
	}
	m.run(ctx, h, text)
	return nil
}

// Wait returns the stored Result for agentID. Because Spawn already runs
// its task to completion, Wait never blocks — it reports whatever the
// handle's last run recorded, or an error if the agent hasn't produced a
// result yet or doesn't exist.
func (m *Manager) Wait(agentID string) (*Result, error) {
	m.mu.Lock()
	h, ok := m.handles[agentID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("subagent %q not found", agentID)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.result == nil {
		return nil, errors.New("subagent has not produced a result yet")
	}
	return h.result, nil
}

// Close marks a handle terminal, releasing it from future SendInput
// calls. It is idempotent.
func (m *Manager) Close(agentID string) error {
	m.mu.Lock()
	h, ok := m.handles[agentID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("subagent %q not found", agentID)
	}
	h.mu.Lock()
	h.status = StatusClosed
	h.mu.Unlock()
	return nil
}

// Get returns the handle for agentID, if any.
func (m *Manager) Get(agentID string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[agentID]
	return h, ok
}
