// Package planner turns a raw user message into a structured retrieval plan:
// an intent classification plus, depending on the intent, a search query or a
// clarification question.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/llms"
	"github.com/sheba-ai/sheba/pkg/prompts"
	"github.com/sheba-ai/sheba/pkg/tokens"
)

// Kind is the planner's intent classification.
type Kind string

const (
	KindInDomain         Kind = "in_domain_govt_service_inquiry"
	KindOutOfDomain      Kind = "out_of_domain_govt_service_inquiry"
	KindGeneralKnowledge Kind = "general_knowledge"
	KindChitchat         Kind = "chitchat"
	KindAmbiguous        Kind = "ambiguous"
	KindAbusiveSlang     Kind = "abusive_slang"
	KindIdentityInquiry  Kind = "identity_inquiry"
	KindMalicious        Kind = "malicious"
	KindUnhandled        Kind = "unhandled"
)

var allKinds = []Kind{
	KindInDomain,
	KindOutOfDomain,
	KindGeneralKnowledge,
	KindChitchat,
	KindAmbiguous,
	KindAbusiveSlang,
	KindIdentityInquiry,
	KindMalicious,
	KindUnhandled,
}

// Valid reports whether k is one of the nine defined intents.
func (k Kind) Valid() bool {
	for _, kind := range allKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// RequiresRetrieval reports whether the intent flows through the retrieval
// pipeline.
func (k Kind) RequiresRetrieval() bool {
	return k == KindInDomain
}

// Plan is the structured output of one planning call.
type Plan struct {
	// Kind is the definitive classification of the user's intent.
	Kind Kind `json:"query_type" jsonschema:"enum=in_domain_govt_service_inquiry,enum=out_of_domain_govt_service_inquiry,enum=general_knowledge,enum=chitchat,enum=ambiguous,enum=abusive_slang,enum=identity_inquiry,enum=malicious,enum=unhandled"`

	// SearchQuery is the Bengali semantic search query, set only for
	// in-domain intents.
	SearchQuery string `json:"query,omitempty"`

	// Clarification is the Bengali follow-up question, set only for
	// ambiguous intents.
	Clarification string `json:"clarification,omitempty"`

	// Category is the service category from the configured vocabulary, set
	// only for in-domain intents.
	Category string `json:"category,omitempty"`
}

var planSchema = llms.MustSchemaFor(&Plan{})

// Planner classifies queries via a structured LLM call.
type Planner struct {
	llm        llms.Provider
	builder    *tokens.PromptBuilder
	categories []string
	params     config.CallParams
	logger     *slog.Logger
}

// New creates a planner.
func New(llm llms.Provider, builder *tokens.PromptBuilder, categories []string, params config.CallParams, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		llm:        llm,
		builder:    builder,
		categories: categories,
		params:     params,
		logger:     logger,
	}
}

// Plan classifies userQuery in the context of the conversation history.
func (p *Planner) Plan(ctx context.Context, history []tokens.Turn, userQuery string) (*Plan, error) {
	prompt, err := p.builder.Build(prompts.Planner, p.llm.MaxContextTokens(),
		tokens.WithFixed("categories", prompts.FormatCategories(p.categories)),
		tokens.WithFixed("user_query", userQuery),
		tokens.WithHistory(history),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build planner prompt: %w", err)
	}

	var plan Plan
	if err := p.llm.InvokeStructured(ctx, prompt, planSchema, &plan, p.params); err != nil {
		return nil, fmt.Errorf("failed to generate retrieval plan: %w", err)
	}

	plan.Kind = Kind(strings.ToLower(strings.TrimSpace(string(plan.Kind))))
	if !plan.Kind.Valid() {
		p.logger.Warn("Planner returned unknown intent, treating as unhandled",
			"query_type", plan.Kind)
		plan.Kind = KindUnhandled
	}

	if plan.Kind == KindAmbiguous && plan.Clarification == "" {
		// An ambiguous plan without a question cannot drive the
		// clarification path.
		p.logger.Warn("Ambiguous plan missing clarification, treating as unhandled")
		plan.Kind = KindUnhandled
	}

	return &plan, nil
}
