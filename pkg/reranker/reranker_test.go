package reranker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/llms"
	"github.com/sheba-ai/sheba/pkg/retriever"
	"github.com/sheba-ai/sheba/pkg/tokens"
)

// judgeFunc lets each test decide the verdict per prompt.
type fakeJudge struct {
	judge func(prompt string) (string, error)

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (f *fakeJudge) Invoke(ctx context.Context, prompt string, params config.CallParams) (string, error) {
	return "", fmt.Errorf("not used")
}

func (f *fakeJudge) Stream(ctx context.Context, prompt string, params config.CallParams) (<-chan llms.StreamChunk, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeJudge) InvokeStructured(ctx context.Context, prompt string, schema map[string]interface{}, out interface{}, params config.CallParams) error {
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if current <= max || f.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	response, err := f.judge(prompt)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(response), out)
}

func (f *fakeJudge) MaxContextTokens() int { return 8192 }
func (f *fakeJudge) ModelName() string     { return "judge" }

func newTestReranker(t *testing.T, judge *fakeJudge, concurrency int64) *Reranker {
	t.Helper()
	counter, err := tokens.NewCounter("gpt-4o")
	require.NoError(t, err)
	builder := tokens.NewPromptBuilder(counter, 1024, 0.5, nil)
	return New(judge, builder, concurrency, config.CallParams{}, nil)
}

func makeCandidates(n int) []retriever.Passage {
	candidates := make([]retriever.Passage, n)
	for i := range candidates {
		candidates[i] = retriever.Passage{
			DocID:     fmt.Sprintf("doc-%d", i+1),
			PassageID: int64(i + 1),
			Document:  fmt.Sprintf("marker-%d content", i+1),
		}
	}
	return candidates
}

func verdictFor(score int) string {
	return fmt.Sprintf(`{"score": %d, "reasoning": "because"}`, score)
}

func TestRerankSortsByScore(t *testing.T) {
	// Scores by document marker: 1→3, 2→1, 3→2, 4→1.
	scores := map[string]int{"marker-1": 3, "marker-2": 1, "marker-3": 2, "marker-4": 1}
	judge := &fakeJudge{judge: func(prompt string) (string, error) {
		for marker, score := range scores {
			if containsMarker(prompt, marker) {
				return verdictFor(score), nil
			}
		}
		return "", fmt.Errorf("unknown passage")
	}}
	r := newTestReranker(t, judge, 2)

	ranked := r.Rerank(context.Background(), nil, "q", "sq", makeCandidates(4))
	require.Len(t, ranked, 4)

	// Score order 1,1,2,3 with retrieval order preserved among the 1s.
	assert.Equal(t, []int64{2, 4, 3, 1}, rankedIDs(ranked))
	assert.Equal(t, []int{1, 1, 2, 3}, rankedScores(ranked))
}

func TestRerankOverflowScoresThree(t *testing.T) {
	judge := &fakeJudge{judge: func(prompt string) (string, error) {
		return "", llms.NewError(llms.KindContextOverflow, "maximum context length exceeded", 400, nil)
	}}
	r := newTestReranker(t, judge, 3)

	ranked := r.Rerank(context.Background(), nil, "q", "sq", makeCandidates(3))
	require.Len(t, ranked, 3, "overflows must not drop passages")
	for _, p := range ranked {
		assert.Equal(t, 3, p.Score)
		assert.Equal(t, "passage too long to evaluate", p.Reasoning)
	}
}

func TestRerankDropsFailedJudgements(t *testing.T) {
	judge := &fakeJudge{judge: func(prompt string) (string, error) {
		if containsMarker(prompt, "marker-2") {
			return "", llms.NewError(llms.KindTransport, "connection reset", 0, nil)
		}
		return verdictFor(1), nil
	}}
	r := newTestReranker(t, judge, 2)

	ranked := r.Rerank(context.Background(), nil, "q", "sq", makeCandidates(3))
	assert.Equal(t, []int64{1, 3}, rankedIDs(ranked))
}

func TestRerankAllFailuresYieldsEmpty(t *testing.T) {
	judge := &fakeJudge{judge: func(prompt string) (string, error) {
		return "", llms.NewError(llms.KindUpstream, "boom", 500, nil)
	}}
	r := newTestReranker(t, judge, 2)

	ranked := r.Rerank(context.Background(), nil, "q", "sq", makeCandidates(4))
	assert.Empty(t, ranked)
}

func TestRerankDropsOutOfRangeScore(t *testing.T) {
	judge := &fakeJudge{judge: func(prompt string) (string, error) {
		return verdictFor(7), nil
	}}
	r := newTestReranker(t, judge, 1)

	ranked := r.Rerank(context.Background(), nil, "q", "sq", makeCandidates(1))
	assert.Empty(t, ranked)
}

func TestRerankHonorsConcurrencyBound(t *testing.T) {
	judge := &fakeJudge{judge: func(prompt string) (string, error) {
		return verdictFor(2), nil
	}}
	r := newTestReranker(t, judge, 3)

	ranked := r.Rerank(context.Background(), nil, "q", "sq", makeCandidates(12))
	assert.Len(t, ranked, 12)
	assert.LessOrEqual(t, judge.maxInFlight.Load(), int64(3))
}

func TestRerankEmptyCandidates(t *testing.T) {
	judge := &fakeJudge{judge: func(prompt string) (string, error) {
		t.Fatal("judge must not be called")
		return "", nil
	}}
	r := newTestReranker(t, judge, 2)

	assert.Nil(t, r.Rerank(context.Background(), nil, "q", "sq", nil))
}

func TestRerankIncludesHistoryAndQueries(t *testing.T) {
	var seen string
	judge := &fakeJudge{judge: func(prompt string) (string, error) {
		seen = prompt
		return verdictFor(1), nil
	}}
	r := newTestReranker(t, judge, 1)

	history := []tokens.Turn{{User: "আগের প্রশ্ন", Assistant: "আগের উত্তর"}}
	r.Rerank(context.Background(), history, "ফি কত?", "পাসপোর্ট ফি", makeCandidates(1))

	assert.Contains(t, seen, "User: আগের প্রশ্ন")
	assert.Contains(t, seen, "ফি কত?")
	assert.Contains(t, seen, "পাসপোর্ট ফি")
	assert.Contains(t, seen, "marker-1 content")
}

func containsMarker(prompt, marker string) bool {
	return strings.Contains(prompt, marker)
}

func rankedIDs(ranked []RankedPassage) []int64 {
	ids := make([]int64, len(ranked))
	for i, p := range ranked {
		ids[i] = p.PassageID
	}
	return ids
}

func rankedScores(ranked []RankedPassage) []int {
	scores := make([]int, len(ranked))
	for i, p := range ranked {
		scores[i] = p.Score
	}
	return scores
}
