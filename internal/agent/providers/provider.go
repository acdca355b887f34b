package providers

import (
	"context"

	"github.com/haasonsaas/nexus/internal/llm"
)

// Provider is the provider-neutral completion contract the session loop
// depends on. It wraps the legacy wire-level LLMProvider implementations
// (anthropic.go, openai.go, google.go, bedrock.go, azure.go, ollama.go,
// copilot_proxy.go, openrouter.go) behind llm.Request/llm.Response so the
// loop never touches a provider's wire encoding directly.
type Provider interface {
	// Complete runs a request to completion and returns the assembled
	// Response. Implementations built over a streaming transport drain the
	// stream internally via a StreamAccumulator.
	Complete(ctx context.Context, req *llm.Request) (*llm.Response, error)

	// Stream runs a request and returns incremental StreamEvents. The
	// channel is closed after a StreamFinish or StreamError event.
	Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamEvent, error)

	// Name returns the provider's identifier ("anthropic", "openai", ...).
	Name() string

	// SupportsTools reports whether this provider accepts tool definitions.
	SupportsTools() bool
}
