// Package agent implements the session loop: the round-based driver that
// turns user input into provider requests, dispatches the resulting tool
// calls, and folds results back into history until the model stops asking
// for tools or a configured bound is reached.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/haasonsaas/nexus/internal/agent/env"
	"github.com/haasonsaas/nexus/internal/agent/loopdetect"
	"github.com/haasonsaas/nexus/internal/agent/providers"
	"github.com/haasonsaas/nexus/internal/agent/truncate"
	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/pkg/models"
)

// SessionConfig configures a new Session.
type SessionConfig struct {
	ID       string
	Provider providers.Provider
	Model    string
	Registry *ToolRegistry
	Env      env.Environment

	// BaseInstructions, ProjectDocs, and UserOverrides are the outer three
	// layers of the five-layer system prompt (environment and tool
	// descriptions are generated from Env and Registry).
	BaseInstructions string
	ProjectDocs      string
	UserOverrides    string

	Options RuntimeOptions
	Sink    EventSink
}

// Session is a stateful, append-only conversation with a model, driving
// tool calls to resolution. process_input (Submit) is not re-entrant: a
// Session serializes concurrent Submit calls rather than leaving the
// behavior undefined, per the design note on session concurrency.
type Session struct {
	id       string
	provider providers.Provider
	model    string
	registry *ToolRegistry
	executor *ToolExecutor
	env      env.Environment

	baseInstructions string
	projectDocs      string
	userOverrides    string

	opts    RuntimeOptions
	emitter *EventEmitter

	steering *SteeringQueue

	submitMu sync.Mutex

	historyMu  sync.Mutex
	history    []Turn
	signatures []loopdetect.Signature
	turnsUsed  int

	aborted atomic.Bool
}

// NewSession constructs a Session ready to accept Submit calls.
func NewSession(cfg SessionConfig) *Session {
	opts := mergeRuntimeOptions(DefaultRuntimeOptions(), cfg.Options)
	execConfig := ToolExecConfig{
		Concurrency:    opts.ToolParallelism,
		PerToolTimeout: opts.ToolTimeout,
		MaxAttempts:    opts.ToolMaxAttempts,
		RetryBackoff:   opts.ToolRetryBackoff,
	}
	return &Session{
		id:               cfg.ID,
		provider:         cfg.Provider,
		model:            cfg.Model,
		registry:         cfg.Registry,
		executor:         NewToolExecutor(cfg.Registry, execConfig),
		env:              cfg.Env,
		baseInstructions: cfg.BaseInstructions,
		projectDocs:      cfg.ProjectDocs,
		userOverrides:    cfg.UserOverrides,
		opts:             opts,
		emitter:          NewEventEmitter(cfg.ID, cfg.Sink),
		steering:         NewSteeringQueue(),
	}
}

// Steering returns the session's steering/follow-up queue so callers can
// inject mid-run steering or queue follow-up messages.
func (s *Session) Steering() *SteeringQueue { return s.steering }

// History returns a snapshot of the session's turns in creation order.
func (s *Session) History() []Turn {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Abort sets the session's abort flag. It is observed at the top of each
// round: in-flight tool calls for the current round complete normally, but
// no further round begins.
func (s *Session) Abort() { s.aborted.Store(true) }

// Submit appends a user turn to history and runs the session loop to a
// natural stop or a configured bound, recursing into any queued follow-up
// once the loop completes naturally. Concurrent Submit calls on the same
// Session are serialized rather than left undefined.
func (s *Session) Submit(ctx context.Context, userText string) error {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	return s.submit(ctx, userText)
}

func (s *Session) submit(ctx context.Context, userText string) error {
	s.appendTurn(UserTurn(userText))

	rounds := 0
	for {
		if s.aborted.Load() {
			return nil
		}
		if s.opts.MaxToolRoundsPerInput > 0 && rounds >= s.opts.MaxToolRoundsPerInput {
			s.emitter.TurnLimit(ctx, "max_tool_rounds_per_input reached")
			return nil
		}
		if s.opts.MaxTurns > 0 && s.turnsUsed >= s.opts.MaxTurns {
			s.emitter.TurnLimit(ctx, "max_turns reached")
			return nil
		}
		rounds++

		natural, err := s.round(ctx)
		if err != nil {
			return err
		}
		if natural {
			break
		}
	}

	for _, fu := range s.steering.GetFollowUpMessages() {
		s.emitter.FollowUpQueued(ctx, fu.Content)
		if err := s.submit(ctx, fu.Content); err != nil {
			return err
		}
	}
	return nil
}

// round runs one iteration of the session loop body. It returns
// natural=true when the assistant's turn carried no tool calls (a natural
// stop); provider errors are returned unwrapped, per the failure semantics
// that the session loop itself never catches them.
func (s *Session) round(ctx context.Context) (natural bool, err error) {
	for _, sm := range s.steering.GetSteeringMessages() {
		s.appendTurn(SteeringTurn(sm.Content))
		s.emitter.SteeringInjected(ctx, sm.Content)
	}

	req := s.buildRequest()

	resp, err := s.provider.Complete(ctx, req)
	if err != nil {
		return false, err
	}
	turn := AssistantTurn(resp.Message)
	s.appendTurn(turn)
	s.emitter.ModelCompleted(ctx, resp.Provider, resp.Model,
		llm.IntOr(resp.Usage.InputTokens, 0), llm.IntOr(resp.Usage.OutputTokens, 0))

	calls := turn.Message.ToolCalls()
	if len(calls) == 0 {
		return true, nil
	}

	results := s.executeToolCalls(ctx, calls)
	s.appendTurn(ToolResultsTurn(results))

	for _, c := range calls {
		s.signatures = append(s.signatures, loopdetect.Sign(c.Name, c.Arguments))
	}
	if s.opts.LoopDetectionWindow > 0 && loopdetect.Detect(s.signatures, s.opts.LoopDetectionWindow) {
		s.emitter.LoopDetected(ctx, s.opts.LoopDetectionWindow)
		s.appendTurn(SteeringTurn(
			"Loop detected: the same tool call has repeated in a periodic pattern. " +
				"Reassess before repeating the last actions."))
	}

	return false, nil
}

// executeToolCalls runs every tool call from one assistant turn, concurrently
// when the runtime profile allows it and serially otherwise. Each call's
// complete, untruncated output is emitted as a tool.finished event; the
// ToolResult returned for history storage carries the truncated form.
func (s *Session) executeToolCalls(ctx context.Context, calls []llm.ToolCall) []llm.ToolResult {
	legacy := make([]models.ToolCall, len(calls))
	for i, c := range calls {
		legacy[i] = models.ToolCall{ID: c.ID, Name: c.Name, Input: c.Arguments}
		if !s.opts.DisableToolEvents {
			s.emitter.ToolStarted(ctx, c.ID, c.Name, c.Arguments)
		}
	}

	var execResults []ToolExecResult
	if s.opts.ParallelToolCalls {
		execResults = s.executor.ExecuteConcurrently(ctx, legacy, nil)
	} else {
		execResults = s.executor.ExecuteSequentially(ctx, legacy)
	}

	results := make([]llm.ToolResult, len(execResults))
	for i, er := range execResults {
		if !s.opts.DisableToolEvents {
			resultJSON := []byte(er.Result.Content)
			s.emitter.ToolFinished(ctx, er.ToolCall.ID, er.ToolCall.Name, !er.Result.IsError, resultJSON, er.EndTime.Sub(er.StartTime))
			if er.TimedOut {
				s.emitter.ToolTimedOut(ctx, er.ToolCall.ID, er.ToolCall.Name, s.opts.ToolTimeout)
			}
		}
		results[i] = llm.ToolResult{
			CallID:  er.ToolCall.ID,
			Content: truncate.Truncate(er.ToolCall.Name, er.Result.Content),
			IsError: er.Result.IsError,
		}
	}
	return results
}

// buildRequest assembles the provider-neutral request for the current
// round: the five-layer system prompt, history rendered as provider-neutral
// messages, and the tool registry's definitions.
func (s *Session) buildRequest() *llm.Request {
	messages := make([]llm.Message, 0, len(s.history)+1)
	messages = append(messages, llm.TextOnly(llm.RoleSystem, s.buildSystemPrompt()))

	s.historyMu.Lock()
	for _, t := range s.history {
		messages = append(messages, t.toMessage())
	}
	s.historyMu.Unlock()

	tools := s.registry.AsLLMTools()
	defs := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.ToolDefinition{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}

	return &llm.Request{
		Model:    s.model,
		Messages: messages,
		Tools:    defs,
		Provider: s.provider.Name(),
	}
}

// buildSystemPrompt assembles the system prompt in five layers: base
// instructions, environment block, tool descriptions, project docs, user
// overrides. Later layers visually follow and conceptually override
// earlier ones.
func (s *Session) buildSystemPrompt() string {
	var b strings.Builder
	writeLayer(&b, "", s.baseInstructions)
	writeLayer(&b, "Environment", s.environmentBlock())
	writeLayer(&b, "Tools", s.toolsBlock())
	writeLayer(&b, "Project Notes", s.projectDocs)
	writeLayer(&b, "Session Overrides", s.userOverrides)
	return b.String()
}

func writeLayer(b *strings.Builder, header, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	if header != "" {
		fmt.Fprintf(b, "## %s\n", header)
	}
	b.WriteString(body)
}

func (s *Session) environmentBlock() string {
	if s.env == nil {
		return ""
	}
	return fmt.Sprintf("Working directory: %s\nPlatform: %s\nOS: %s",
		s.env.WorkingDirectory(), s.env.Platform(), s.env.OSVersion())
}

func (s *Session) toolsBlock() string {
	tools := s.registry.AsLLMTools()
	if len(tools) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range tools {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", t.Name(), t.Description())
	}
	return b.String()
}

func (s *Session) appendTurn(t Turn) {
	s.historyMu.Lock()
	s.history = append(s.history, t)
	s.turnsUsed++
	s.historyMu.Unlock()
}
