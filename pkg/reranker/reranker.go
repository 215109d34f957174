// Package reranker scores retrieval candidates with a judge LLM, bounded by
// a concurrency semaphore. Scores run 1 (direct answer) to 3 (unrelated).
package reranker

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/llms"
	"github.com/sheba-ai/sheba/pkg/observability"
	"github.com/sheba-ai/sheba/pkg/prompts"
	"github.com/sheba-ai/sheba/pkg/retriever"
	"github.com/sheba-ai/sheba/pkg/tokens"
)

// Verdict is the judge's structured output for one passage.
type Verdict struct {
	Score     int    `json:"score" jsonschema:"minimum=1,maximum=3"`
	Reasoning string `json:"reasoning"`
}

var verdictSchema = llms.MustSchemaFor(&Verdict{})

// RankedPassage is a candidate with its relevance verdict attached.
type RankedPassage struct {
	retriever.Passage

	// Score is 1 (direct answer), 2 (partially relevant) or 3 (unrelated).
	Score int

	// Reasoning is the judge's brief justification.
	Reasoning string
}

// Reranker judges candidates in parallel.
type Reranker struct {
	llm     llms.Provider
	builder *tokens.PromptBuilder
	sem     *semaphore.Weighted
	params  config.CallParams
	logger  *slog.Logger
}

// New creates a reranker that runs at most concurrency judge calls at once.
func New(llm llms.Provider, builder *tokens.PromptBuilder, concurrency int64, params config.CallParams, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reranker{
		llm:     llm,
		builder: builder,
		sem:     semaphore.NewWeighted(concurrency),
		params:  params,
		logger:  logger,
	}
}

// Rerank scores every candidate against the user's intent and returns the
// survivors sorted by score, best first, preserving retrieval order within
// equal scores. Candidates whose judge call fails are dropped, except
// context overflows which score 3 so an oversized passage cannot sink the
// whole batch.
func (r *Reranker) Rerank(ctx context.Context, history []tokens.Turn, userQuery, searchQuery string, candidates []retriever.Passage) []RankedPassage {
	if len(candidates) == 0 {
		return nil
	}

	results := make([]*RankedPassage, len(candidates))

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := r.sem.Acquire(ctx, 1); err != nil {
				r.logger.Warn("Rerank cancelled while waiting for slot",
					"passage_id", candidate.PassageID, "error", err)
				return
			}
			defer r.sem.Release(1)

			results[i] = r.scoreOne(ctx, history, userQuery, searchQuery, candidate)
		}()
	}
	wg.Wait()

	ranked := make([]RankedPassage, 0, len(candidates))
	for _, result := range results {
		if result != nil {
			ranked = append(ranked, *result)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	return ranked
}

func (r *Reranker) scoreOne(ctx context.Context, history []tokens.Turn, userQuery, searchQuery string, candidate retriever.Passage) *RankedPassage {
	prompt, err := r.builder.Build(prompts.Rerank, r.llm.MaxContextTokens(),
		tokens.WithFixed("user_query", userQuery),
		tokens.WithFixed("search_query", searchQuery),
		tokens.WithFixed("passage_text", candidate.Document),
		tokens.WithHistory(history),
	)
	if err != nil {
		r.logger.Warn("Failed to build rerank prompt, dropping passage",
			"passage_id", candidate.PassageID, "error", err)
		return nil
	}

	var verdict Verdict
	if err := r.llm.InvokeStructured(ctx, prompt, verdictSchema, &verdict, r.params); err != nil {
		if llms.IsContextOverflow(err) {
			// An oversized passage is judged unrelated rather than
			// failing the batch.
			observability.RecordRerankOutcome("overflow")
			return &RankedPassage{
				Passage:   candidate,
				Score:     3,
				Reasoning: "passage too long to evaluate",
			}
		}
		r.logger.Warn("Could not score passage, dropping it",
			"passage_id", candidate.PassageID, "error", err)
		observability.RecordRerankOutcome("dropped")
		return nil
	}

	if verdict.Score < 1 || verdict.Score > 3 {
		r.logger.Warn("Judge returned out-of-range score, dropping passage",
			"passage_id", candidate.PassageID, "score", verdict.Score)
		return nil
	}

	return &RankedPassage{
		Passage:   candidate,
		Score:     verdict.Score,
		Reasoning: verdict.Reasoning,
	}
}
