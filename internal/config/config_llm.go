package config

// LLMConfig selects and configures the LLM providers codergen pipeline
// nodes dispatch to.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig configures a single named provider entry (e.g.
// "anthropic", "openai"). See cmd/nexus's buildLLMProvider for the
// providers actually wired.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}
