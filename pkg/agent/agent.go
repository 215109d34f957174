// Package agent orchestrates the full conversational pipeline: planning,
// retrieval, reranking, answer synthesis and history maintenance. Each Agent
// owns one conversation.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/databases"
	"github.com/sheba-ai/sheba/pkg/embedders"
	"github.com/sheba-ai/sheba/pkg/llms"
	"github.com/sheba-ai/sheba/pkg/observability"
	"github.com/sheba-ai/sheba/pkg/planner"
	"github.com/sheba-ai/sheba/pkg/prompts"
	"github.com/sheba-ai/sheba/pkg/reranker"
	"github.com/sheba-ai/sheba/pkg/retriever"
	"github.com/sheba-ai/sheba/pkg/tokens"
)

// queryPlanner produces a retrieval plan for the latest user message.
type queryPlanner interface {
	Plan(ctx context.Context, history []tokens.Turn, userQuery string) (*planner.Plan, error)
}

// passageRetriever fetches fused candidates for a search query.
type passageRetriever interface {
	Retrieve(ctx context.Context, query string, filter map[string]interface{}) ([]retriever.Passage, error)
}

// passageReranker judges candidates against the user's intent.
type passageReranker interface {
	Rerank(ctx context.Context, history []tokens.Turn, userQuery, searchQuery string, candidates []retriever.Passage) []reranker.RankedPassage
}

// Agent runs one conversation end to end.
type Agent struct {
	cfg *config.Config

	planner   queryPlanner
	retriever passageRetriever
	reranker  passageReranker

	responder  llms.Provider
	answerer   llms.Provider
	summarizer llms.Provider

	builder *tokens.PromptBuilder
	history *History

	conversationID string
	logger         *slog.Logger

	store    databases.Provider
	embedder embedders.Embedder
}

// NewFromConfig wires a fully operational agent from validated
// configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	counter, err := tokens.NewCounter(cfg.Tokenizer.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}
	builder := tokens.NewPromptBuilder(counter, cfg.Tokenizer.ReservationTokens, cfg.Tokenizer.HistoryFraction, logger)

	providers := make(map[string]llms.Provider, len(cfg.LLMServices))
	for name, svc := range cfg.LLMServices {
		providers[name] = llms.NewOpenAIProvider(svc)
		logger.Debug("LLM service configured",
			"service", name, "model", providers[name].ModelName())
	}

	store, err := databases.NewFromConfig(cfg.Retriever.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	embedder := embedders.NewOpenAIEmbedder(cfg.Embedder)

	params := func(task string) config.CallParams {
		return cfg.CallParams[task]
	}

	agent := &Agent{
		cfg: cfg,
		planner: planner.New(providers[cfg.Tasks.Planner], builder,
			cfg.Categories, params("planner"), logger),
		retriever: retriever.New(store, embedder, cfg.Retriever, logger),
		reranker: reranker.New(providers[cfg.Tasks.Reranker], builder,
			cfg.Reranker.Concurrency, params("reranker"), logger),
		responder:      providers[cfg.Tasks.NonRetrievalResponder],
		answerer:       providers[cfg.Tasks.AnswerGenerator],
		summarizer:     providers[cfg.Tasks.Summarizer],
		builder:        builder,
		history:        NewHistory(cfg.Conversation.HistoryWindow),
		conversationID: uuid.NewString(),
		logger:         logger,
		store:          store,
		embedder:       embedder,
	}
	return agent, nil
}

// ConversationID identifies this agent's conversation.
func (a *Agent) ConversationID() string {
	return a.conversationID
}

// Heartbeat verifies the vector store is reachable.
func (a *Agent) Heartbeat(ctx context.Context) error {
	return a.store.Heartbeat(ctx)
}

// Close releases backend connections.
func (a *Agent) Close() error {
	if err := a.embedder.Close(); err != nil {
		return err
	}
	return a.store.Close()
}

// ProcessQuery handles one user message and returns an ordered event
// stream: zero or more answer_chunk events, then at most one final_data or
// error event. The channel is closed when the turn ends.
func (a *Agent) ProcessQuery(ctx context.Context, userQuery string) <-chan Event {
	events := make(chan Event, 16)
	go func() {
		defer close(events)
		a.process(ctx, userQuery, events)
	}()
	return events
}

func (a *Agent) process(ctx context.Context, userQuery string, events chan<- Event) {
	a.logger.Info("Processing query",
		"conversation_id", a.conversationID, "query", userQuery)

	// The planner and reranker read the verbatim log so follow-up references
	// resolve against the exact answers the user saw; generation prompts use
	// the cheaper summarized log.
	verbatim := a.history.Verbatim()
	summarized := a.history.Summarized()

	start := time.Now()
	plan, err := a.planner.Plan(ctx, verbatim, userQuery)
	observability.RecordLLMCall("planner", time.Since(start), err)
	if err != nil {
		a.logger.Error("Failed to generate a retrieval plan", "error", err)
		a.emit(ctx, events, Event{Type: EventError, Content: a.cfg.Templates.PlanGenerationFailed})
		return
	}

	observability.RecordQuery(string(plan.Kind))
	a.logger.Info("Retrieval plan",
		"query_type", plan.Kind, "query", plan.SearchQuery, "category", plan.Category)

	switch {
	case plan.Kind == planner.KindAmbiguous:
		a.handleClarification(ctx, userQuery, plan.Clarification, events)
	case plan.Kind.RequiresRetrieval():
		a.handleRetrieval(ctx, userQuery, plan, verbatim, summarized, events)
	default:
		a.handleDirectResponse(ctx, userQuery, plan, summarized, events)
	}
}

// handleClarification streams the planner's question character by character
// and records it in both history logs.
func (a *Agent) handleClarification(ctx context.Context, userQuery, clarification string, events chan<- Event) {
	delay := time.Duration(a.cfg.Conversation.ClarificationDelayMS) * time.Millisecond

	for _, char := range clarification {
		if !a.emit(ctx, events, Event{Type: EventAnswerChunk, Content: string(char)}) {
			return
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	a.history.Append(userQuery, clarification, clarification)
}

// handleDirectResponse answers the seven non-retrieval intents with a single
// routed LLM stream.
func (a *Agent) handleDirectResponse(ctx context.Context, userQuery string, plan *planner.Plan, history []tokens.Turn, events chan<- Event) {
	template := prompts.Router(string(plan.Kind))

	opts := []tokens.BuildOption{
		tokens.WithFixed("user_query", userQuery),
		tokens.WithHistory(history),
	}
	if plan.Kind == planner.KindIdentityInquiry {
		opts = append(opts,
			tokens.WithFixed("agent_name", a.cfg.Identity.Name),
			tokens.WithFixed("agent_story", a.cfg.Identity.Story),
		)
	}

	prompt, err := a.builder.Build(template, a.responder.MaxContextTokens(), opts...)
	if err != nil {
		a.emit(ctx, events, Event{Type: EventError, Content: a.cfg.Templates.ErrorFallback})
		return
	}

	answer, err := a.streamAnswer(ctx, a.responder, "non_retrieval_responder", prompt, events)
	if err != nil {
		a.logger.Error("Direct response stream failed", "query_type", plan.Kind, "error", err)
		a.emit(ctx, events, Event{Type: EventError, Content: a.failureMessage(err)})
		return
	}

	a.history.Append(userQuery, answer, answer)
}

// handleRetrieval runs the full retrieve-rerank-synthesize path.
func (a *Agent) handleRetrieval(ctx context.Context, userQuery string, plan *planner.Plan, verbatim, summarized []tokens.Turn, events chan<- Event) {
	searchQuery := plan.SearchQuery
	if searchQuery == "" {
		// A plan without a search query still names the intent; fall back
		// to the raw message.
		searchQuery = userQuery
	}

	refined := RefineCategory(plan.Category, a.cfg.Categories, a.cfg.CategoryRefinement.ScoreCutoff)
	var filter map[string]interface{}
	if refined != "" {
		filter = map[string]interface{}{"category": refined}
	}

	passages, err := a.retriever.Retrieve(ctx, searchQuery, filter)
	if err != nil {
		a.logger.Error("Retrieval failed", "error", err)
		a.emit(ctx, events, Event{Type: EventError, Content: a.cfg.Templates.ServicesUnavailable})
		return
	}
	if len(passages) == 0 {
		// Nothing retrieved: canned response, and the exchange is not
		// recorded so a retry starts clean.
		a.emit(ctx, events, Event{Type: EventAnswerChunk, Content: a.cfg.Templates.NoPassagesFound})
		return
	}

	ranked := a.reranker.Rerank(ctx, verbatim, userQuery, searchQuery, passages)

	relevant := make([]reranker.RankedPassage, 0, len(ranked))
	for _, passage := range ranked {
		if passage.Score <= a.cfg.Reranker.RelevanceThreshold {
			relevant = append(relevant, passage)
			observability.RecordRerankOutcome("kept")
		} else {
			observability.RecordRerankOutcome("cut")
		}
	}

	if len(relevant) == 0 {
		a.handlePivot(ctx, userQuery, refined, summarized, events)
		return
	}

	a.handleSynthesis(ctx, userQuery, relevant, summarized, events)
}

// handlePivot suggests related services when the reranker rejected every
// candidate.
func (a *Agent) handlePivot(ctx context.Context, userQuery, category string, history []tokens.Turn, events chan<- Event) {
	a.logger.Info("No relevant passages, generating pivot response", "category", category)

	prompt, err := a.builder.Build(prompts.Pivot, a.responder.MaxContextTokens(),
		tokens.WithFixed("user_query", userQuery),
		tokens.WithFixed("category", category),
		tokens.WithFixed("service_data", a.cfg.ServiceData),
		tokens.WithHistory(history),
	)
	if err != nil {
		a.emit(ctx, events, Event{Type: EventError, Content: a.cfg.Templates.ErrorFallback})
		return
	}

	answer, err := a.streamAnswer(ctx, a.responder, "non_retrieval_responder", prompt, events)
	if err != nil {
		a.logger.Error("Pivot stream failed", "error", err)
		a.emit(ctx, events, Event{Type: EventError, Content: a.failureMessage(err)})
		return
	}

	a.history.Append(userQuery, answer, answer)
}

// handleSynthesis streams the grounded answer, emits sources, summarizes the
// exchange and records it.
func (a *Agent) handleSynthesis(ctx context.Context, userQuery string, relevant []reranker.RankedPassage, history []tokens.Turn, events chan<- Event) {
	entries := make([]tokens.PassageEntry, len(relevant))
	for i, passage := range relevant {
		entries[i] = tokens.PassageEntry{
			ID:       passage.PassageID,
			Document: passage.Document,
		}
	}

	prompt, err := a.builder.Build(prompts.Synthesis, a.answerer.MaxContextTokens(),
		tokens.WithFixed("user_query", userQuery),
		tokens.WithHistory(history),
		tokens.WithPassages(entries),
	)
	if err != nil {
		a.emit(ctx, events, Event{Type: EventError, Content: a.cfg.Templates.ErrorFallback})
		return
	}

	finalAnswer, err := a.streamAnswer(ctx, a.answerer, "answer_generator", prompt, events)
	if err != nil {
		a.logger.Error("Answer stream failed", "error", err)
		a.emit(ctx, events, Event{Type: EventError, Content: a.failureMessage(err)})
		return
	}

	if !a.emit(ctx, events, Event{Type: EventFinalData, Sources: collectSources(relevant)}) {
		return
	}

	summary, err := a.summarize(ctx, userQuery, finalAnswer)
	if err != nil {
		a.logger.Error("Failed to summarize exchange", "error", err)
		a.emit(ctx, events, Event{Type: EventError, Content: a.cfg.Templates.ErrorFallback})
		return
	}

	a.history.Append(userQuery, finalAnswer, summary)
}

// summarize condenses the finished exchange for the summarized history log.
func (a *Agent) summarize(ctx context.Context, userQuery, finalAnswer string) (string, error) {
	prompt, err := a.builder.Build(prompts.Summary, a.summarizer.MaxContextTokens(),
		tokens.WithFixed("user_query", userQuery),
		tokens.WithFixed("final_answer", finalAnswer),
	)
	if err != nil {
		return "", err
	}

	start := time.Now()
	summary, err := a.summarizer.Invoke(ctx, prompt, a.cfg.CallParams["summarizer"])
	observability.RecordLLMCall("summarizer", time.Since(start), err)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

// streamAnswer forwards a completion stream as answer_chunk events and
// returns the accumulated text exactly as emitted, so history entries match
// what the user saw.
func (a *Agent) streamAnswer(ctx context.Context, provider llms.Provider, task, prompt string, events chan<- Event) (string, error) {
	start := time.Now()

	ch, err := provider.Stream(ctx, prompt, a.cfg.CallParams[task])
	if err != nil {
		observability.RecordLLMCall(task, time.Since(start), err)
		return "", err
	}

	var full strings.Builder
	for chunk := range ch {
		if chunk.Error != nil {
			observability.RecordLLMCall(task, time.Since(start), chunk.Error)
			return "", chunk.Error
		}
		full.WriteString(chunk.Text)
		if !a.emit(ctx, events, Event{Type: EventAnswerChunk, Content: chunk.Text}) {
			return "", ctx.Err()
		}
	}

	observability.RecordLLMCall(task, time.Since(start), nil)
	return full.String(), nil
}

// emit delivers an event unless the consumer is gone.
func (a *Agent) emit(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

// failureMessage picks the canned message for a pipeline failure: network
// and upstream trouble read as a temporary outage, anything else as a
// generic fault.
func (a *Agent) failureMessage(err error) string {
	switch llms.KindOf(err) {
	case llms.KindTransport, llms.KindUpstream:
		return a.cfg.Templates.ServicesUnavailable
	default:
		return a.cfg.Templates.ErrorFallback
	}
}

// collectSources builds the deterministic source list: distinct URLs then
// distinct passage ids, each partition sorted lexicographically.
func collectSources(relevant []reranker.RankedPassage) []string {
	urlSet := make(map[string]bool)
	idSet := make(map[string]bool)

	for _, passage := range relevant {
		if url := passage.Metadata["url"]; url != "" {
			urlSet[url] = true
		}
		idSet[strconv.FormatInt(passage.PassageID, 10)] = true
	}

	urls := make([]string, 0, len(urlSet))
	for url := range urlSet {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return append(urls, ids...)
}
