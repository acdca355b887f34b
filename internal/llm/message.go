// Package llm defines the provider-neutral conversation data model shared by
// the session loop and every provider adapter: messages, content parts,
// requests, responses, usage accounting, and streaming events.
package llm

import "encoding/json"

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartKind discriminates the payload carried by a ContentPart.
type PartKind string

const (
	PartText              PartKind = "text"
	PartImage             PartKind = "image"
	PartAudio             PartKind = "audio"
	PartDocument          PartKind = "document"
	PartToolCall          PartKind = "tool_call"
	PartToolResult        PartKind = "tool_result"
	PartThinking          PartKind = "thinking"
	PartRedactedThinking  PartKind = "redacted_thinking"
)

// ContentPart is a tagged variant: exactly one payload field is populated,
// selected by Kind. This mirrors the source's polymorphic content block as
// a discriminated struct rather than an interface hierarchy, per the
// "dynamic-to-static translation" design note.
type ContentPart struct {
	Kind PartKind `json:"kind"`

	// Text carries PartText and PartThinking/PartRedactedThinking payloads.
	Text string `json:"text,omitempty"`

	// Media carries PartImage/PartAudio/PartDocument payloads.
	Media *MediaPayload `json:"media,omitempty"`

	// ToolCall carries a PartToolCall payload.
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	// ToolResult carries a PartToolResult payload.
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// MediaPayload is the inline or referenced bytes for an image/audio/document part.
type MediaPayload struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Text is a convenience constructor for a text content part.
func Text(s string) ContentPart { return ContentPart{Kind: PartText, Text: s} }

// Thinking is a convenience constructor for a thinking content part.
func Thinking(s string) ContentPart { return ContentPart{Kind: PartThinking, Text: s} }

// ToolCallPart wraps a ToolCall as a content part.
func ToolCallPart(tc ToolCall) ContentPart { return ContentPart{Kind: PartToolCall, ToolCall: &tc} }

// ToolResultPart wraps a ToolResult as a content part.
func ToolResultPart(tr ToolResult) ContentPart {
	return ContentPart{Kind: PartToolResult, ToolResult: &tr}
}

// ToolCall is a model-requested invocation of a named tool with structured
// arguments. The call id threads through to the matching ToolResult.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult carries the outcome of executing a ToolCall back to the model.
// Content is string or structured JSON; IsError marks a failed execution
// (the content is still sent to the model so it can react).
type ToolResult struct {
	CallID    string          `json:"call_id"`
	Content   string          `json:"content"`
	Structured json.RawMessage `json:"structured,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Artifacts []Artifact      `json:"artifacts,omitempty"`
}

// Artifact is a file or media byproduct of a tool execution.
type Artifact struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Message is one turn in a session's history: a role plus an ordered
// sequence of content parts.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// TextOnly returns a single-part text message for the given role.
func TextOnly(role Role, text string) Message {
	return Message{Role: role, Parts: []ContentPart{Text(text)}}
}

// ConcatText joins every PartText/PartThinking payload in order; used to
// render a message for logs or a simple provider encoding.
func (m Message) ConcatText() string {
	var out []byte
	for _, p := range m.Parts {
		if p.Kind == PartText {
			out = append(out, p.Text...)
		}
	}
	return string(out)
}

// ToolCalls returns every tool_call part in the message, in order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if p.Kind == PartToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// HasToolCalls reports whether the message requests any tool execution.
func (m Message) HasToolCalls() bool {
	for _, p := range m.Parts {
		if p.Kind == PartToolCall {
			return true
		}
	}
	return false
}
