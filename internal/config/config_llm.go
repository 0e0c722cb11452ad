package config

// LLMConfig selects and configures the provider backing the Assistant's
// LLM port (internal/llm), matching the teacher's LLMConfig shape trimmed
// to what an OpenAI-compatible adapter actually needs: no routing rules,
// no Bedrock discovery, no fallback chain.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig names one provider's endpoint and credentials.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}
