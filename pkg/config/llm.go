package config

import (
	"fmt"
)

// LLMEndpointConfig describes one OpenAI-compatible chat-completions endpoint.
type LLMEndpointConfig struct {
	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty"`

	// Model identifier sent with each request.
	Model string `yaml:"model"`

	// BaseURL of the endpoint, e.g. "https://api.example.com/v1".
	BaseURL string `yaml:"base_url"`

	// MaxContextTokens is the model's context window; the prompt builder
	// enforces this ceiling.
	MaxContextTokens int `yaml:"max_context_tokens,omitempty"`

	// Timeout per call, in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	// MaxRetries for transient HTTP failures.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// RetryDelay is the base backoff delay, in seconds.
	RetryDelay int `yaml:"retry_delay,omitempty"`
}

// SetDefaults applies default values.
func (c *LLMEndpointConfig) SetDefaults() {
	if c.MaxContextTokens == 0 {
		c.MaxContextTokens = 8192
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2
	}
}

// Validate checks the endpoint configuration.
func (c *LLMEndpointConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.MaxContextTokens < 1 {
		return fmt.Errorf("max_context_tokens must be positive")
	}
	return nil
}

// CallParams are the sampling knobs of one LLM invocation.
type CallParams struct {
	Temperature *float64 `yaml:"temperature,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	Stop        []string `yaml:"stop,omitempty"`
}

// EmbedderConfig describes the query embedding endpoint
// (OpenAI-compatible /embeddings API).
type EmbedderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty"`
	Timeout int    `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30
	}
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	return nil
}
