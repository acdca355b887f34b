package llm

// ToolChoiceMode selects how the model is constrained in choosing tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNamed    ToolChoiceMode = "named"
)

// ToolChoice constrains which tools, if any, the model may call.
type ToolChoice struct {
	Mode ToolChoiceMode `json:"mode"`
	Name string         `json:"name,omitempty"` // populated when Mode == ToolChoiceNamed
}

// ToolDefinition describes a callable tool: its name, natural-language
// description, and JSON Schema for arguments.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      []byte `json:"schema"` // raw JSON Schema
}

// ResponseFormat constrains the shape of the model's textual output.
type ResponseFormat struct {
	Kind   string `json:"kind"` // "text", "json_object", "json_schema"
	Schema []byte `json:"schema,omitempty"`
}

// Sampling carries generation knobs passed through to the provider.
type Sampling struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxOutputTokens  int      `json:"max_output_tokens,omitempty"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
}

// ReasoningEffort selects how much deliberation-budget a reasoning-capable
// model should spend. Mirrors the pipeline node attribute of the same name.
type ReasoningEffort string

const (
	ReasoningLow    ReasoningEffort = "low"
	ReasoningMedium ReasoningEffort = "medium"
	ReasoningHigh   ReasoningEffort = "high"
)

// Request is a single provider-neutral completion request: everything a
// provider adapter needs to produce a Response or a stream of StreamEvents.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice ToolChoice       `json:"tool_choice,omitempty"`

	ResponseFormat ResponseFormat  `json:"response_format,omitempty"`
	Sampling       Sampling        `json:"sampling,omitempty"`
	ReasoningEffort ReasoningEffort `json:"reasoning_effort,omitempty"`

	// Provider selects which adapter handles this request ("anthropic",
	// "openai", "gemini", "openai-compatible", ...).
	Provider string `json:"provider,omitempty"`

	// ProviderOptions is an opaque, provider-specific option bag; adapters
	// interpret keys they recognize and ignore the rest.
	ProviderOptions map[string]any `json:"provider_options,omitempty"`
}
