package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheba-ai/sheba/pkg/config"
	"github.com/sheba-ai/sheba/pkg/llms"
	"github.com/sheba-ai/sheba/pkg/tokens"
)

type fakeLLM struct {
	response   string
	err        error
	lastPrompt string
}

func (f *fakeLLM) Invoke(ctx context.Context, prompt string, params config.CallParams) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) Stream(ctx context.Context, prompt string, params config.CallParams) (<-chan llms.StreamChunk, error) {
	ch := make(chan llms.StreamChunk, 1)
	ch <- llms.StreamChunk{Text: f.response}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) InvokeStructured(ctx context.Context, prompt string, schema map[string]interface{}, out interface{}, params config.CallParams) error {
	f.lastPrompt = prompt
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func (f *fakeLLM) MaxContextTokens() int { return 8192 }
func (f *fakeLLM) ModelName() string     { return "fake" }

func newTestPlanner(t *testing.T, llm llms.Provider) *Planner {
	t.Helper()
	counter, err := tokens.NewCounter("gpt-4o")
	require.NoError(t, err)
	builder := tokens.NewPromptBuilder(counter, 1024, 0.5, nil)
	categories := []string{"পাসপোর্ট", "স্মার্ট কার্ড ও জাতীয় পরিচয়পত্র"}
	return New(llm, builder, categories, config.CallParams{}, nil)
}

func TestPlanInDomain(t *testing.T) {
	llm := &fakeLLM{response: `{
		"query_type": "in_domain_govt_service_inquiry",
		"query": "পাসপোর্ট আবেদনের জন্য প্রয়োজনীয় ফি",
		"category": "পাসপোর্ট"
	}`}
	p := newTestPlanner(t, llm)

	plan, err := p.Plan(context.Background(), nil, "সেটার জন্য কত টাকা লাগবে?")
	require.NoError(t, err)

	assert.Equal(t, KindInDomain, plan.Kind)
	assert.True(t, plan.Kind.RequiresRetrieval())
	assert.Equal(t, "পাসপোর্ট আবেদনের জন্য প্রয়োজনীয় ফি", plan.SearchQuery)
	assert.Equal(t, "পাসপোর্ট", plan.Category)

	assert.Contains(t, llm.lastPrompt, "- পাসপোর্ট")
	assert.Contains(t, llm.lastPrompt, "সেটার জন্য কত টাকা লাগবে?")
	assert.Contains(t, llm.lastPrompt, "No conversation history yet.")
}

func TestPlanIncludesHistory(t *testing.T) {
	llm := &fakeLLM{response: `{"query_type": "chitchat"}`}
	p := newTestPlanner(t, llm)

	history := []tokens.Turn{{User: "হ্যালো", Assistant: "আসসালামু আলাইকুম"}}
	_, err := p.Plan(context.Background(), history, "কেমন আছো?")
	require.NoError(t, err)

	assert.Contains(t, llm.lastPrompt, "User: হ্যালো\nAI: আসসালামু আলাইকুম")
}

func TestPlanNormalizesKindCase(t *testing.T) {
	llm := &fakeLLM{response: `{"query_type": "GENERAL_KNOWLEDGE"}`}
	p := newTestPlanner(t, llm)

	plan, err := p.Plan(context.Background(), nil, "what is the capital of france?")
	require.NoError(t, err)
	assert.Equal(t, KindGeneralKnowledge, plan.Kind)
}

func TestPlanUnknownKindBecomesUnhandled(t *testing.T) {
	llm := &fakeLLM{response: `{"query_type": "something_else"}`}
	p := newTestPlanner(t, llm)

	plan, err := p.Plan(context.Background(), nil, "?")
	require.NoError(t, err)
	assert.Equal(t, KindUnhandled, plan.Kind)
}

func TestPlanAmbiguousWithoutClarification(t *testing.T) {
	llm := &fakeLLM{response: `{"query_type": "ambiguous"}`}
	p := newTestPlanner(t, llm)

	plan, err := p.Plan(context.Background(), nil, "আমি কর দিতে চাই")
	require.NoError(t, err)
	assert.Equal(t, KindUnhandled, plan.Kind)
}

func TestPlanPropagatesLLMFailure(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("upstream down")}
	p := newTestPlanner(t, llm)

	_, err := p.Plan(context.Background(), nil, "q")
	require.Error(t, err)
}

func TestKindValid(t *testing.T) {
	for _, kind := range allKinds {
		assert.True(t, kind.Valid(), string(kind))
	}
	assert.False(t, Kind("nonsense").Valid())
}
