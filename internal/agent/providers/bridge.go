package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Bridge adapts a legacy agent.LLMProvider (the wire-level contract the
// adapters in this package implement) to the provider-neutral Provider
// interface. This is the single translation boundary between llm.Request /
// llm.Response and agent.CompletionRequest / agent.CompletionChunk; the
// adapters themselves are untouched.
type Bridge struct {
	inner agent.LLMProvider
}

// NewBridge wraps a legacy provider for use by the session loop.
func NewBridge(inner agent.LLMProvider) *Bridge {
	return &Bridge{inner: inner}
}

func (b *Bridge) Name() string          { return b.inner.Name() }
func (b *Bridge) SupportsTools() bool   { return b.inner.SupportsTools() }

// Complete drains the legacy provider's chunk stream into a single Response.
func (b *Bridge) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	events, err := b.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	acc := llm.NewStreamAccumulator("", req.Model, b.Name())
	for ev := range events {
		if ev.Kind == llm.StreamError {
			return nil, ev.Err
		}
		acc.Feed(ev)
	}
	resp := acc.Response()
	return &resp, nil
}

// Stream translates the request, invokes the legacy provider, and converts
// its CompletionChunk stream into StreamEvents.
func (b *Bridge) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error) {
	legacyReq := toCompletionRequest(req)
	chunks, err := b.inner.Complete(ctx, legacyReq)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamEvent, 16)
	go func() {
		defer close(out)
		out <- llm.StreamEvent{Kind: llm.StreamStart}

		textOpen := false
		thinkOpen := false
		var usage *llm.Usage

		for chunk := range chunks {
			if chunk.Error != nil {
				out <- llm.StreamEvent{Kind: llm.StreamError, Err: chunk.Error}
				return
			}
			if chunk.ThinkingStart {
				thinkOpen = true
				out <- llm.StreamEvent{Kind: llm.StreamReasoningStart}
			}
			if chunk.Thinking != "" {
				out <- llm.StreamEvent{Kind: llm.StreamReasoningDelta, ReasoningDelta: chunk.Thinking}
			}
			if chunk.ThinkingEnd {
				thinkOpen = false
				out <- llm.StreamEvent{Kind: llm.StreamReasoningEnd}
			}
			if chunk.Text != "" {
				if !textOpen {
					out <- llm.StreamEvent{Kind: llm.StreamTextStart}
					textOpen = true
				}
				out <- llm.StreamEvent{Kind: llm.StreamTextDelta, TextDelta: chunk.Text}
			}
			if chunk.ToolCall != nil {
				args, _ := json.Marshal(json.RawMessage(chunk.ToolCall.Input))
				out <- llm.StreamEvent{Kind: llm.StreamToolCallStart, ToolCallID: chunk.ToolCall.ID, ToolCallName: chunk.ToolCall.Name}
				out <- llm.StreamEvent{Kind: llm.StreamToolCallDelta, ToolCallID: chunk.ToolCall.ID, ToolCallArgsDelta: string(args)}
				out <- llm.StreamEvent{Kind: llm.StreamToolCallEnd, ToolCallID: chunk.ToolCall.ID}
			}
			if chunk.InputTokens > 0 || chunk.OutputTokens > 0 {
				u := llm.Usage{
					InputTokens:  llm.IntPtr(chunk.InputTokens),
					OutputTokens: llm.IntPtr(chunk.OutputTokens),
				}
				usage = &u
			}
			if chunk.Done {
				break
			}
		}
		if textOpen {
			out <- llm.StreamEvent{Kind: llm.StreamTextEnd}
		}
		if thinkOpen {
			out <- llm.StreamEvent{Kind: llm.StreamReasoningEnd}
		}
		finish := llm.FinishStop
		out <- llm.StreamEvent{Kind: llm.StreamFinish, Finish: finish, Usage: usage}
	}()
	return out, nil
}

// toCompletionRequest translates a provider-neutral Request into the legacy
// wire-level CompletionRequest the adapters consume.
func toCompletionRequest(req *llm.Request) *agent.CompletionRequest {
	legacy := &agent.CompletionRequest{
		Model:     req.Model,
		MaxTokens: req.Sampling.MaxOutputTokens,
	}
	if req.ReasoningEffort != "" {
		legacy.EnableThinking = true
	}

	for _, msg := range req.Messages {
		if msg.Role == llm.RoleSystem || msg.Role == llm.RoleDeveloper {
			if legacy.System != "" {
				legacy.System += "\n\n"
			}
			legacy.System += msg.ConcatText()
			continue
		}
		legacy.Messages = append(legacy.Messages, toCompletionMessage(msg))
	}

	for _, td := range req.Tools {
		legacy.Tools = append(legacy.Tools, &definitionTool{def: td})
	}
	return legacy
}

func toCompletionMessage(msg llm.Message) agent.CompletionMessage {
	cm := agent.CompletionMessage{Role: string(msg.Role)}
	for _, part := range msg.Parts {
		switch part.Kind {
		case llm.PartText, llm.PartThinking:
			cm.Content += part.Text
		case llm.PartToolCall:
			if part.ToolCall != nil {
				cm.ToolCalls = append(cm.ToolCalls, models.ToolCall{
					ID:    part.ToolCall.ID,
					Name:  part.ToolCall.Name,
					Input: json.RawMessage(part.ToolCall.Arguments),
				})
			}
		case llm.PartToolResult:
			if part.ToolResult != nil {
				cm.ToolResults = append(cm.ToolResults, models.ToolResult{
					ToolCallID: part.ToolResult.CallID,
					Content:    part.ToolResult.Content,
					IsError:    part.ToolResult.IsError,
				})
			}
		case llm.PartImage, llm.PartAudio, llm.PartDocument:
			if part.Media != nil {
				cm.Attachments = append(cm.Attachments, models.Attachment{
					Type:     string(part.Kind),
					MimeType: part.Media.MimeType,
					URL:      part.Media.URL,
					Data:     part.Media.Data,
				})
			}
		}
	}
	return cm
}

// definitionTool adapts an llm.ToolDefinition (a pure name/description/schema
// triple) to the agent.Tool interface so it can populate a
// CompletionRequest.Tools slice. Execute is never called by a provider
// adapter — tool execution happens in the session loop, not inside the
// wire-encoding layer — so it returns an error if invoked.
type definitionTool struct {
	def llm.ToolDefinition
}

func (t *definitionTool) Name() string            { return t.def.Name }
func (t *definitionTool) Description() string     { return t.def.Description }
func (t *definitionTool) Schema() json.RawMessage  { return json.RawMessage(t.def.Schema) }
func (t *definitionTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return nil, fmt.Errorf("definitionTool %q: execution is handled by the session loop, not the provider adapter", t.def.Name)
}
