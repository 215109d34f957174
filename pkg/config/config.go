// Package config defines the configuration surface of the engine.
// Configuration is loaded once at construction from a YAML file with ${ENV}
// expansion; every section carries SetDefaults and Validate.
package config

import (
	"fmt"
)

// Config is the root configuration for the engine.
type Config struct {
	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging,omitempty"`

	// LLMServices maps a service name to an OpenAI-compatible endpoint.
	LLMServices map[string]LLMEndpointConfig `yaml:"llm_services"`

	// Tasks maps each pipeline task to one of the named LLM services.
	Tasks TaskMapping `yaml:"task_to_model_mapping"`

	// CallParams holds per-task sampling parameters, keyed by task name.
	CallParams map[string]CallParams `yaml:"llm_call_parameters,omitempty"`

	// Tokenizer configures token counting and prompt budgeting.
	Tokenizer TokenizerConfig `yaml:"tokenizer,omitempty"`

	// Embedder configures the query embedding endpoint.
	Embedder EmbedderConfig `yaml:"embedder"`

	// Retriever configures the sharded vector retriever.
	Retriever RetrieverConfig `yaml:"vector_retriever"`

	// Reranker configures the parallel judge.
	Reranker RerankerConfig `yaml:"reranker,omitempty"`

	// Conversation configures history handling.
	Conversation ConversationConfig `yaml:"conversation,omitempty"`

	// CategoryRefinement configures fuzzy matching of planner categories.
	CategoryRefinement CategoryRefinementConfig `yaml:"category_refinement,omitempty"`

	// Categories is the closed service category vocabulary.
	Categories []string `yaml:"categories"`

	// ServiceData is the knowledge-base overview used by the pivot prompt.
	ServiceData string `yaml:"service_data,omitempty"`

	// Templates holds canned responses for degraded paths.
	Templates ResponseTemplates `yaml:"response_templates,omitempty"`

	// Identity holds the agent persona fields used by non-retrieval prompts.
	Identity IdentityConfig `yaml:"identity,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// TaskMapping routes pipeline tasks to named LLM services.
type TaskMapping struct {
	Planner               string `yaml:"planner"`
	NonRetrievalResponder string `yaml:"non_retrieval_responder"`
	Reranker              string `yaml:"reranker"`
	AnswerGenerator       string `yaml:"answer_generator"`
	Summarizer            string `yaml:"summarizer"`
}

// TokenizerConfig configures token counting and the prompt budget split.
type TokenizerConfig struct {
	// Model is the tokenizer model id (tiktoken encoding lookup).
	Model string `yaml:"model,omitempty"`

	// ReservationTokens is the fixed budget reserved for template boilerplate.
	ReservationTokens int `yaml:"reservation_tokens,omitempty"`

	// HistoryFraction is the share of the remaining budget given to history.
	HistoryFraction float64 `yaml:"history_fraction,omitempty"`
}

// RerankerConfig bounds the judge fan-out and sets the relevance cut.
type RerankerConfig struct {
	// Concurrency caps simultaneous judge calls.
	Concurrency int64 `yaml:"concurrency,omitempty"`

	// RelevanceThreshold keeps passages with score <= threshold.
	RelevanceThreshold int `yaml:"relevance_score_threshold,omitempty"`
}

// ConversationConfig bounds the dual history logs.
type ConversationConfig struct {
	// HistoryWindow is the maximum number of retained turns.
	HistoryWindow int `yaml:"history_window,omitempty"`

	// ClarificationDelayMS paces character-by-character clarification output.
	ClarificationDelayMS int `yaml:"clarification_delay_ms,omitempty"`
}

// CategoryRefinementConfig tunes fuzzy category matching.
type CategoryRefinementConfig struct {
	// ScoreCutoff is the minimum similarity (0..1) to accept a match.
	ScoreCutoff float64 `yaml:"score_cutoff,omitempty"`
}

// ResponseTemplates are canned answers for degraded paths.
type ResponseTemplates struct {
	PlanGenerationFailed string `yaml:"plan_generation_failed,omitempty"`
	NoPassagesFound      string `yaml:"no_passages_found,omitempty"`
	ServicesUnavailable  string `yaml:"services_unavailable,omitempty"`
	ErrorFallback        string `yaml:"error_fallback,omitempty"`
}

// IdentityConfig is the agent persona surfaced in non-retrieval prompts.
type IdentityConfig struct {
	Name  string `yaml:"name,omitempty"`
	Story string `yaml:"story,omitempty"`
}

// SetDefaults applies default values across all sections.
func (c *Config) SetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "simple"
	}

	for name, svc := range c.LLMServices {
		svc.SetDefaults()
		c.LLMServices[name] = svc
	}

	if c.Tokenizer.Model == "" {
		c.Tokenizer.Model = "gpt-4o"
	}
	if c.Tokenizer.ReservationTokens == 0 {
		c.Tokenizer.ReservationTokens = 1024
	}
	if c.Tokenizer.HistoryFraction == 0 {
		c.Tokenizer.HistoryFraction = 0.5
	}

	c.Embedder.SetDefaults()
	c.Retriever.SetDefaults()

	if c.Reranker.Concurrency == 0 {
		c.Reranker.Concurrency = 5
	}
	if c.Reranker.RelevanceThreshold == 0 {
		c.Reranker.RelevanceThreshold = 2
	}

	if c.Conversation.HistoryWindow == 0 {
		c.Conversation.HistoryWindow = 5
	}
	if c.Conversation.ClarificationDelayMS == 0 {
		c.Conversation.ClarificationDelayMS = 10
	}

	if c.CategoryRefinement.ScoreCutoff == 0 {
		c.CategoryRefinement.ScoreCutoff = 0.6
	}

	if c.Templates.PlanGenerationFailed == "" {
		c.Templates.PlanGenerationFailed = "দুঃখিত, আপনার প্রশ্নটি প্রক্রিয়া করা সম্ভব হয়নি। অনুগ্রহ করে আবার চেষ্টা করুন।"
	}
	if c.Templates.NoPassagesFound == "" {
		c.Templates.NoPassagesFound = "দুঃখিত, এই বিষয়ে কোনো তথ্য খুঁজে পাওয়া যায়নি।"
	}
	if c.Templates.ServicesUnavailable == "" {
		c.Templates.ServicesUnavailable = "পরিষেবাটি এই মুহূর্তে সাময়িকভাবে অনুপলব্ধ। অনুগ্রহ করে কিছুক্ষণ পর আবার চেষ্টা করুন।"
	}
	if c.Templates.ErrorFallback == "" {
		c.Templates.ErrorFallback = "দুঃখিত, একটি অপ্রত্যাশিত সমস্যা হয়েছে। অনুগ্রহ করে আবার চেষ্টা করুন।"
	}

	if c.Identity.Name == "" {
		c.Identity.Name = "সেবা"
	}
}

// Validate checks cross-section consistency.
func (c *Config) Validate() error {
	if len(c.LLMServices) == 0 {
		return fmt.Errorf("llm_services must define at least one endpoint")
	}

	for name, svc := range c.LLMServices {
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("llm service %q: %w", name, err)
		}
	}

	tasks := map[string]string{
		"planner":                 c.Tasks.Planner,
		"non_retrieval_responder": c.Tasks.NonRetrievalResponder,
		"reranker":                c.Tasks.Reranker,
		"answer_generator":        c.Tasks.AnswerGenerator,
		"summarizer":              c.Tasks.Summarizer,
	}
	for task, svc := range tasks {
		if svc == "" {
			return fmt.Errorf("task_to_model_mapping: %s is required", task)
		}
		if _, ok := c.LLMServices[svc]; !ok {
			return fmt.Errorf("task_to_model_mapping: %s references unknown service %q", task, svc)
		}
	}

	if err := c.Retriever.Validate(); err != nil {
		return fmt.Errorf("vector_retriever: %w", err)
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}

	if c.Tokenizer.HistoryFraction < 0 || c.Tokenizer.HistoryFraction > 1 {
		return fmt.Errorf("tokenizer: history_fraction must be between 0 and 1")
	}
	if c.Reranker.Concurrency < 1 {
		return fmt.Errorf("reranker: concurrency must be at least 1")
	}
	if c.Reranker.RelevanceThreshold < 1 || c.Reranker.RelevanceThreshold > 3 {
		return fmt.Errorf("reranker: relevance_score_threshold must be 1, 2 or 3")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("categories vocabulary is required")
	}

	return nil
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}
