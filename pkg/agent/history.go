package agent

import (
	"github.com/sheba-ai/sheba/pkg/tokens"
)

// History keeps two parallel conversation logs bounded to the same window:
// the verbatim log holds the full answers shown to the user, the summarized
// log holds condensed entries used as prompt context. Both logs always cover
// the same turns.
//
// A History belongs to a single conversation and is accessed from one
// goroutine at a time.
type History struct {
	window     int
	verbatim   []tokens.Turn
	summarized []tokens.Turn
}

// NewHistory creates a history retaining at most window turns.
func NewHistory(window int) *History {
	if window < 1 {
		window = 1
	}
	return &History{window: window}
}

// Append records one finished exchange in both logs and trims them to the
// window, oldest first.
func (h *History) Append(user, answer, summary string) {
	h.verbatim = append(h.verbatim, tokens.Turn{User: user, Assistant: answer})
	h.summarized = append(h.summarized, tokens.Turn{User: user, Assistant: summary})

	if len(h.verbatim) > h.window {
		h.verbatim = h.verbatim[len(h.verbatim)-h.window:]
		h.summarized = h.summarized[len(h.summarized)-h.window:]
	}
}

// Summarized returns a copy of the summarized log.
func (h *History) Summarized() []tokens.Turn {
	out := make([]tokens.Turn, len(h.summarized))
	copy(out, h.summarized)
	return out
}

// Verbatim returns a copy of the verbatim log.
func (h *History) Verbatim() []tokens.Turn {
	out := make([]tokens.Turn, len(h.verbatim))
	copy(out, h.verbatim)
	return out
}

// Len is the number of retained turns.
func (h *History) Len() int {
	return len(h.verbatim)
}
