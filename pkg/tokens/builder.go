package tokens

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

const historyOverflowText = "History is too long to be included."

// PromptBuilder assembles prompts from templates with {slot} placeholders
// while keeping the result under a model's context ceiling.
//
// The budget split: the reservation covers template boilerplate and fixed
// slots off the top; history receives a fixed fraction of what remains and is
// trimmed oldest-first; passages consume the rest and are trimmed
// least-relevant-first. A final encode-level truncation backstops any
// counting drift.
type PromptBuilder struct {
	counter         *Counter
	reservation     int
	historyFraction float64
	logger          *slog.Logger
}

// NewPromptBuilder creates a builder. reservation is the token budget held
// back for template boilerplate; historyFraction in [0,1] is the share of the
// variable budget given to conversation history.
func NewPromptBuilder(counter *Counter, reservation int, historyFraction float64, logger *slog.Logger) *PromptBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromptBuilder{
		counter:         counter,
		reservation:     reservation,
		historyFraction: historyFraction,
		logger:          logger,
	}
}

type buildState struct {
	fixed    map[string]string
	history  []Turn
	passages []PassageEntry

	hasHistory  bool
	hasPassages bool
}

// BuildOption populates one template slot.
type BuildOption func(*buildState)

// WithFixed fills a slot with text that is never truncated. Its cost is
// deducted from the variable budget before history and passages are sized.
func WithFixed(name, value string) BuildOption {
	return func(s *buildState) {
		s.fixed[name] = value
	}
}

// WithHistory fills the {history} slot from conversation turns, dropping the
// oldest turns first when the history budget is exceeded.
func WithHistory(turns []Turn) BuildOption {
	return func(s *buildState) {
		s.history = turns
		s.hasHistory = true
	}
}

// WithPassages fills the {passages_context} slot from passages sorted
// most-relevant-first, dropping the least relevant first when the remaining
// budget is exceeded.
func WithPassages(passages []PassageEntry) BuildOption {
	return func(s *buildState) {
		s.passages = passages
		s.hasPassages = true
	}
}

// Build renders template against ceiling, the model's maximum context size.
// The result is guaranteed to fit within ceiling tokens.
func (b *PromptBuilder) Build(template string, ceiling int, opts ...BuildOption) (string, error) {
	state := &buildState{fixed: make(map[string]string)}
	for _, opt := range opts {
		opt(state)
	}

	available := ceiling - b.reservation
	if available < 0 {
		available = 0
	}

	for _, value := range state.fixed {
		available -= b.counter.Count(value)
	}
	if available < 0 {
		available = 0
	}

	replacements := make([]string, 0, 2*(len(state.fixed)+2))
	for name, value := range state.fixed {
		replacements = append(replacements, "{"+name+"}", value)
	}

	if state.hasHistory {
		historyBudget := int(math.Floor(float64(available) * b.historyFraction))
		historyText, used := b.fitHistory(state.history, historyBudget)
		available -= used
		replacements = append(replacements, "{history}", historyText)
	}

	if state.hasPassages {
		passagesText := b.fitPassages(state.passages, available)
		replacements = append(replacements, "{passages_context}", passagesText)
	}

	prompt := strings.NewReplacer(replacements...).Replace(template)

	if count := b.counter.Count(prompt); count > ceiling {
		b.logger.Warn("Prompt exceeds context ceiling after assembly, hard truncating",
			"tokens", count, "ceiling", ceiling)
		prompt = b.counter.Truncate(prompt, ceiling)
	}

	return prompt, nil
}

// fitHistory renders the newest turns that fit within budget, oldest dropped
// first. Returns the rendered block and its token cost.
func (b *PromptBuilder) fitHistory(turns []Turn, budget int) (string, int) {
	if len(turns) == 0 {
		text := FormatHistory(nil)
		if cost := b.counter.Count(text); cost <= budget {
			return text, cost
		}
		return "", 0
	}

	for start := 0; start < len(turns); start++ {
		text := FormatHistory(turns[start:])
		cost := b.counter.Count(text)
		if cost <= budget {
			if start > 0 {
				b.logger.Warn("Dropped oldest conversation turns to fit history budget",
					"dropped", start, "kept", len(turns)-start)
			}
			return text, cost
		}
	}

	// Not even the newest turn fits.
	placeholder := historyOverflowText
	cost := b.counter.Count(placeholder)
	if cost > budget {
		return "", 0
	}
	b.logger.Warn("Conversation history replaced with overflow placeholder", "turns", len(turns))
	return placeholder, cost
}

// fitPassages renders the most relevant passages that fit within budget,
// least relevant dropped first. Returns the rendered block; an empty string
// when nothing fits.
func (b *PromptBuilder) fitPassages(passages []PassageEntry, budget int) string {
	for end := len(passages); end > 0; end-- {
		text := FormatPassages(passages[:end])
		if b.counter.Count(text) <= budget {
			if end < len(passages) {
				b.logger.Warn("Dropped least relevant passages to fit context budget",
					"dropped", len(passages)-end, "kept", end)
			}
			return text
		}
	}
	if len(passages) > 0 {
		b.logger.Warn("No passages fit the remaining context budget", "candidates", len(passages))
	}
	return ""
}

func (b *PromptBuilder) String() string {
	return fmt.Sprintf("PromptBuilder(model=%s, reservation=%d, history_fraction=%.2f)",
		b.counter.Model(), b.reservation, b.historyFraction)
}
