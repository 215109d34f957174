// Package retriever performs sharded vector search with Reciprocal Rank
// Fusion. Every shard is queried in parallel; per-shard failures degrade the
// result set instead of failing the whole retrieval.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/databases"
	"github.com/sheba-ai/sheba/pkg/embedders"
	"github.com/sheba-ai/sheba/pkg/observability"
)

// Passage is one fused, materialized retrieval candidate.
type Passage struct {
	// DocID is the store record id, used as a fallback identifier.
	DocID string

	// PassageID is the stable cross-shard passage identifier.
	PassageID int64

	// Document is the canonical passage text.
	Document string

	// Metadata carries source fields such as the originating URL.
	Metadata map[string]string
}

// Retriever fans a query out over shard collections and fuses the rankings.
type Retriever struct {
	store    databases.Provider
	embedder embedders.Embedder
	cfg      config.RetrieverConfig
	logger   *slog.Logger
}

// New creates a retriever.
func New(store databases.Provider, embedder embedders.Embedder, cfg config.RetrieverConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve embeds query, searches every shard in parallel, fuses the shard
// rankings with RRF and materializes the winners from the passage
// collection. Results are ordered by fused score, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter map[string]interface{}) ([]Passage, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	vector := vectors[0]

	// One ranked id list per shard, in shard order.
	rankings := make([][]int64, len(r.cfg.Collections))

	g, gctx := errgroup.WithContext(ctx)
	for i, collection := range r.cfg.Collections {
		g.Go(func() error {
			results, err := r.store.Query(gctx, collection, vector, r.cfg.TopK, filter)
			if err != nil {
				// A dead shard only shrinks the candidate pool.
				r.logger.Warn("Shard query failed, continuing without it",
					"collection", collection, "error", err)
				observability.RecordShardError(collection)
				return nil
			}
			rankings[i] = r.extractRanking(collection, results)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseRankings(rankings, r.cfg.RRFK)
	if len(fused) > r.cfg.MaxResults {
		fused = fused[:r.cfg.MaxResults]
	}
	if len(fused) == 0 {
		return nil, nil
	}

	return r.materialize(ctx, fused)
}

// Heartbeat verifies the underlying store is reachable.
func (r *Retriever) Heartbeat(ctx context.Context) error {
	return r.store.Heartbeat(ctx)
}

// extractRanking pulls the stable passage id out of each shard hit,
// preserving rank order. Hits without a usable id are dropped.
func (r *Retriever) extractRanking(collection string, results []databases.QueryResult) []int64 {
	ranking := make([]int64, 0, len(results))
	for _, result := range results {
		id, ok := parsePassageID(result.Metadata[r.cfg.PassageIDKey])
		if !ok {
			r.logger.Warn("Dropping shard hit with malformed passage id",
				"collection", collection, "doc_id", result.ID,
				"value", result.Metadata[r.cfg.PassageIDKey])
			continue
		}
		ranking = append(ranking, id)
	}
	return ranking
}

// parsePassageID accepts the integer representations that survive each
// store's JSON round trip.
func parsePassageID(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// fuseRankings applies Reciprocal Rank Fusion across shard rankings:
// score(id) = sum over shards of 1/(k + rank), rank starting at 1. Ties
// break toward the lower id so fusion is deterministic.
func fuseRankings(rankings [][]int64, k int) []int64 {
	scores := make(map[int64]float64)
	for _, ranking := range rankings {
		seen := make(map[int64]bool, len(ranking))
		for rank, id := range ranking {
			if seen[id] {
				continue
			}
			seen[id] = true
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}

	fused := make([]int64, 0, len(scores))
	for id := range scores {
		fused = append(fused, id)
	}
	sort.Slice(fused, func(i, j int) bool {
		if scores[fused[i]] != scores[fused[j]] {
			return scores[fused[i]] > scores[fused[j]]
		}
		return fused[i] < fused[j]
	})
	return fused
}

// materialize fetches canonical passage records for the fused ids and
// restores the fused order, dropping ids the passage collection no longer
// holds.
func (r *Retriever) materialize(ctx context.Context, ids []int64) ([]Passage, error) {
	where := map[string]interface{}{
		r.cfg.PassageIDKey: map[string]interface{}{"$in": ids},
	}

	records, err := r.store.Get(ctx, r.cfg.PassageCollection, where)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize passages: %w", err)
	}

	byID := make(map[int64]Passage, len(records))
	for _, record := range records {
		id, ok := parsePassageID(record.Metadata[r.cfg.PassageIDKey])
		if !ok {
			r.logger.Warn("Dropping passage record with malformed passage id",
				"doc_id", record.ID)
			continue
		}

		metadata := make(map[string]string, len(record.Metadata))
		for key, value := range record.Metadata {
			metadata[key] = fmt.Sprintf("%v", value)
		}

		byID[id] = Passage{
			DocID:     record.ID,
			PassageID: id,
			Document:  record.Document,
			Metadata:  metadata,
		}
	}

	passages := make([]Passage, 0, len(ids))
	for _, id := range ids {
		passage, ok := byID[id]
		if !ok {
			r.logger.Warn("Fused passage missing from passage collection", "passage_id", id)
			continue
		}
		passages = append(passages, passage)
	}
	return passages, nil
}
