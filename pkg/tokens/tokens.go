// Package tokens provides accurate token counting and budget-aware prompt
// assembly against a model's context window.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens for a specific model's encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

var (
	// Cache encodings to avoid repeated initialization
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewCounter creates a counter for a specific model. Unknown models fall
// back to the cl100k_base encoding.
func NewCounter(model string) (*Counter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &Counter{
			encoding: cached,
			model:    model,
		}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &Counter{
		encoding: encoding,
		model:    model,
	}, nil
}

// Count returns the token count for text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.encoding.Encode(text, nil, nil))
}

// Truncate cuts text down to at most maxTokens tokens by encode-decode.
func (c *Counter) Truncate(text string, maxTokens int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	encoded := c.encoding.Encode(text, nil, nil)
	if len(encoded) <= maxTokens {
		return text
	}
	if maxTokens <= 0 {
		return ""
	}
	return c.encoding.Decode(encoded[:maxTokens])
}

// Model returns the model name this counter is configured for.
func (c *Counter) Model() string {
	return c.model
}

// Turn is one (user utterance, assistant reply) pair of a conversation.
type Turn struct {
	User      string
	Assistant string
}

const emptyHistoryText = "No conversation history yet."

// FormatHistory renders turns into the canonical history block consumed by
// every prompt.
func FormatHistory(turns []Turn) string {
	if len(turns) == 0 {
		return emptyHistoryText
	}

	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = fmt.Sprintf("User: %s\nAI: %s", t.User, t.Assistant)
	}
	return strings.Join(parts, "\n---\n")
}

// PassageEntry is one passage rendered into the passages_context slot.
// Entries are assumed sorted most-relevant-first.
type PassageEntry struct {
	ID       int64
	Document string
}

// FormatPassages renders passages into the canonical context block.
func FormatPassages(passages []PassageEntry) string {
	if len(passages) == 0 {
		return ""
	}

	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = fmt.Sprintf("Passage ID: %d\nContent: %s", p.ID, p.Document)
	}
	return strings.Join(parts, "\n\n")
}
