package retriever

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/databases"
)

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (f *fakeEmbedder) Close() error { return nil }

type fakeStore struct {
	// shardHits maps collection name to ranked passage ids.
	shardHits map[string][]int64

	// failing collections return an error from Query.
	failing map[string]bool

	// passages available for materialization.
	passages map[int64]string

	getCalls int
}

func (f *fakeStore) Query(ctx context.Context, collection string, vector []float32, topK int, where map[string]interface{}) ([]databases.QueryResult, error) {
	if f.failing[collection] {
		return nil, fmt.Errorf("shard %s unavailable", collection)
	}

	hits := f.shardHits[collection]
	results := make([]databases.QueryResult, 0, len(hits))
	for _, id := range hits {
		results = append(results, databases.QueryResult{
			ID:       fmt.Sprintf("%s-%d", collection, id),
			Metadata: map[string]interface{}{"passage_id": float64(id)},
		})
	}
	return results, nil
}

func (f *fakeStore) Get(ctx context.Context, collection string, where map[string]interface{}) ([]databases.QueryResult, error) {
	f.getCalls++

	clause, ok := where["passage_id"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing passage_id clause")
	}
	ids, ok := clause["$in"].([]int64)
	if !ok {
		return nil, fmt.Errorf("missing $in values")
	}

	var results []databases.QueryResult
	for _, id := range ids {
		document, ok := f.passages[id]
		if !ok {
			continue
		}
		results = append(results, databases.QueryResult{
			ID:       fmt.Sprintf("passage-%d", id),
			Document: document,
			Metadata: map[string]interface{}{
				"passage_id": float64(id),
				"url":        fmt.Sprintf("https://example.gov.bd/%d", id),
			},
		})
	}
	return results, nil
}

func (f *fakeStore) Heartbeat(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                        { return nil }

func testConfig(collections ...string) config.RetrieverConfig {
	cfg := config.RetrieverConfig{
		Collections:       collections,
		PassageCollection: "passages",
	}
	cfg.SetDefaults()
	return cfg
}

func allPassages(ids ...int64) map[int64]string {
	passages := make(map[int64]string, len(ids))
	for _, id := range ids {
		passages[id] = fmt.Sprintf("text %d", id)
	}
	return passages
}

func passageIDs(passages []Passage) []int64 {
	ids := make([]int64, len(passages))
	for i, p := range passages {
		ids[i] = p.PassageID
	}
	return ids
}

func TestRetrieveFusesShardRankings(t *testing.T) {
	store := &fakeStore{
		shardHits: map[string][]int64{
			"shard_a": {1, 2, 3},
			"shard_b": {2, 3, 4},
		},
		passages: allPassages(1, 2, 3, 4),
	}
	r := New(store, &fakeEmbedder{}, testConfig("shard_a", "shard_b"), nil)

	passages, err := r.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)

	// 2 appears at ranks 2 and 1, winning over 1 and 3; 4 only at rank 3.
	assert.Equal(t, []int64{2, 3, 1, 4}, passageIDs(passages))
	assert.Equal(t, "text 2", passages[0].Document)
	assert.Equal(t, "https://example.gov.bd/2", passages[0].Metadata["url"])
}

func TestRetrieveShardOrderInvariance(t *testing.T) {
	hits := map[string][]int64{
		"shard_a": {5, 1, 9},
		"shard_b": {9, 5, 2},
		"shard_c": {1, 9},
	}
	passages := allPassages(1, 2, 5, 9)

	orders := [][]string{
		{"shard_a", "shard_b", "shard_c"},
		{"shard_c", "shard_a", "shard_b"},
		{"shard_b", "shard_c", "shard_a"},
	}

	var baseline []int64
	for _, order := range orders {
		store := &fakeStore{shardHits: hits, passages: passages}
		r := New(store, &fakeEmbedder{}, testConfig(order...), nil)

		got, err := r.Retrieve(context.Background(), "q", nil)
		require.NoError(t, err)

		if baseline == nil {
			baseline = passageIDs(got)
			continue
		}
		assert.Equal(t, baseline, passageIDs(got), "order %v", order)
	}
}

func TestRetrieveTieBreaksOnLowerID(t *testing.T) {
	store := &fakeStore{
		shardHits: map[string][]int64{
			"shard_a": {7},
			"shard_b": {3},
		},
		passages: allPassages(3, 7),
	}
	r := New(store, &fakeEmbedder{}, testConfig("shard_a", "shard_b"), nil)

	passages, err := r.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, passageIDs(passages))
}

func TestRetrieveContainsShardFailure(t *testing.T) {
	store := &fakeStore{
		shardHits: map[string][]int64{
			"shard_a": {1, 2},
			"shard_b": {3},
		},
		failing:  map[string]bool{"shard_b": true},
		passages: allPassages(1, 2, 3),
	}
	r := New(store, &fakeEmbedder{}, testConfig("shard_a", "shard_b"), nil)

	passages, err := r.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, passageIDs(passages))
}

func TestRetrieveAllShardsFailing(t *testing.T) {
	store := &fakeStore{
		failing:  map[string]bool{"shard_a": true, "shard_b": true},
		passages: allPassages(),
	}
	r := New(store, &fakeEmbedder{}, testConfig("shard_a", "shard_b"), nil)

	passages, err := r.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, passages)
	assert.Zero(t, store.getCalls, "no materialization without candidates")
}

func TestRetrieveDropsMissingMaterialization(t *testing.T) {
	store := &fakeStore{
		shardHits: map[string][]int64{"shard_a": {1, 2, 3}},
		passages:  allPassages(1, 3),
	}
	r := New(store, &fakeEmbedder{}, testConfig("shard_a"), nil)

	passages, err := r.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, passageIDs(passages))
}

func TestRetrieveCapsAtMaxResults(t *testing.T) {
	hits := make([]int64, 0, 20)
	for id := int64(1); id <= 20; id++ {
		hits = append(hits, id)
	}
	store := &fakeStore{
		shardHits: map[string][]int64{"shard_a": hits},
		passages:  allPassages(hits...),
	}
	cfg := testConfig("shard_a")
	cfg.TopK = 20
	cfg.MaxResults = 4
	r := New(store, &fakeEmbedder{}, cfg, nil)

	passages, err := r.Retrieve(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Len(t, passages, 4)
	assert.Equal(t, []int64{1, 2, 3, 4}, passageIDs(passages))
}

func TestParsePassageID(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int64
		ok    bool
	}{
		{"int64", int64(42), 42, true},
		{"integral float", float64(7), 7, true},
		{"fractional float", 7.5, 0, false},
		{"numeric string", "19", 19, true},
		{"garbage string", "abc", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePassageID(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
