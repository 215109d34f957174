package llms

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies LLM call failures so callers can branch on them
// without string matching.
type ErrorKind string

const (
	// KindTransport covers network failures, timeouts, and exhausted retries.
	KindTransport ErrorKind = "transport_error"

	// KindUpstream covers non-2xx API responses that are not overflows.
	KindUpstream ErrorKind = "upstream_error"

	// KindEmptyResponse means the call succeeded but returned no content.
	KindEmptyResponse ErrorKind = "empty_response"

	// KindSchemaViolation means structured output failed to parse against
	// the requested schema.
	KindSchemaViolation ErrorKind = "schema_violation"

	// KindContextOverflow means the prompt exceeded the model's context.
	KindContextOverflow ErrorKind = "context_overflow"
)

// Error is the typed failure of one LLM call.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed Error.
func NewError(kind ErrorKind, message string, statusCode int, err error) *Error {
	return &Error{Kind: kind, Message: message, StatusCode: statusCode, Err: err}
}

// KindOf extracts the ErrorKind from err; unclassified errors map to
// KindTransport.
func KindOf(err error) ErrorKind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return KindTransport
}

// IsContextOverflow reports whether err is a context window overflow.
func IsContextOverflow(err error) bool {
	return KindOf(err) == KindContextOverflow
}

// looksLikeOverflow sniffs an API error body for context-length complaints.
// OpenAI-compatible servers report overflows as 400s with prose, not codes.
func looksLikeOverflow(statusCode int, body string) bool {
	if statusCode != 400 && statusCode != 413 {
		return false
	}
	lower := strings.ToLower(body)
	for _, marker := range []string{
		"context length",
		"context window",
		"maximum context",
		"context_length_exceeded",
		"too many tokens",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
