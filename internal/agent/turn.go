package agent

import "github.com/haasonsaas/nexus/internal/llm"

// TurnKind discriminates a Turn's role within a session's history.
type TurnKind string

const (
	TurnUser        TurnKind = "user"
	TurnAssistant   TurnKind = "assistant"
	TurnToolResults TurnKind = "tool_results"
	TurnSteering    TurnKind = "steering"
	TurnSystem      TurnKind = "system"
)

// Turn is one entry in a session's append-only history. Exactly one of
// Message/ToolResults is meaningful, selected by Kind: user, assistant,
// steering, and system turns carry a Message; tool_results turns carry the
// executed tool outcomes for the assistant turn immediately preceding them.
type Turn struct {
	Kind        TurnKind
	Message     llm.Message
	ToolResults []llm.ToolResult
}

// UserTurn builds a user turn from plain text.
func UserTurn(text string) Turn {
	return Turn{Kind: TurnUser, Message: llm.TextOnly(llm.RoleUser, text)}
}

// SteeringTurn builds a steering turn from plain text. Steering turns render
// to the provider as user-role content; Kind distinguishes them in history
// for introspection (loop-detection warnings, audit, tests).
func SteeringTurn(text string) Turn {
	return Turn{Kind: TurnSteering, Message: llm.TextOnly(llm.RoleUser, text)}
}

// AssistantTurn wraps a provider response's message as an assistant turn.
func AssistantTurn(msg llm.Message) Turn {
	return Turn{Kind: TurnAssistant, Message: msg}
}

// ToolResultsTurn builds a tool_results turn from executed tool outcomes.
func ToolResultsTurn(results []llm.ToolResult) Turn {
	return Turn{Kind: TurnToolResults, ToolResults: results}
}

// HasToolCalls reports whether an assistant turn requested tool execution.
func (t Turn) HasToolCalls() bool {
	return t.Kind == TurnAssistant && t.Message.HasToolCalls()
}

// toMessage renders a Turn as the llm.Message the provider request carries.
// Tool-results turns synthesize a tool-role message from their results.
func (t Turn) toMessage() llm.Message {
	if t.Kind == TurnToolResults {
		parts := make([]llm.ContentPart, 0, len(t.ToolResults))
		for _, r := range t.ToolResults {
			parts = append(parts, llm.ToolResultPart(r))
		}
		return llm.Message{Role: llm.RoleTool, Parts: parts}
	}
	return t.Message
}
