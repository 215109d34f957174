// Package llms provides the LLM capability layer: plain, streaming and
// schema-constrained calls against OpenAI-compatible chat-completions
// endpoints, with typed error classification.
package llms

import (
	"context"

	"github.com/sheba-ai/sheba/pkg/config"
)

// StreamChunk is one increment of a streaming response. A chunk carries
// either text or a terminal error, never both.
type StreamChunk struct {
	Text  string
	Error error
}

// Provider is the uniform LLM call surface used by every pipeline stage.
type Provider interface {
	// Invoke sends prompt and returns the full completion text.
	Invoke(ctx context.Context, prompt string, params config.CallParams) (string, error)

	// Stream sends prompt and returns completion text incrementally. The
	// channel is closed when the stream ends; a failure mid-stream arrives
	// as a final chunk with Error set.
	Stream(ctx context.Context, prompt string, params config.CallParams) (<-chan StreamChunk, error)

	// InvokeStructured constrains the completion to schema and unmarshals
	// it into out. A completion that does not parse is a schema violation.
	InvokeStructured(ctx context.Context, prompt string, schema map[string]interface{}, out interface{}, params config.CallParams) error

	// MaxContextTokens is the model's context window size.
	MaxContextTokens() int

	// ModelName identifies the underlying model.
	ModelName() string
}
