package models

import "encoding/json"

// ToolCall, ToolResult, and Attachment are the wire-level types consumed by
// the provider adapters' CompletionMessage/CompletionChunk contract. They
// predate the provider-neutral llm.Message model and remain here because the
// adapters encode/decode directly against them.

// ToolCall is a model-requested tool invocation surfaced on a CompletionChunk
// or embedded in a CompletionMessage's history.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult is the outcome of executing a ToolCall, threaded back into the
// conversation by ToolCallID.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Attachment is an inline or referenced media payload on a CompletionMessage,
// carrying an image/document for vision-capable models.
type Attachment struct {
	Type     string `json:"type"` // "image", "document", ...
	MimeType string `json:"mime_type,omitempty"`
	URL      string `json:"url,omitempty"` // data: URL or remote URL
	Data     []byte `json:"data,omitempty"`
	Filename string `json:"filename,omitempty"`
}
