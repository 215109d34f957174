// Package observability exposes Prometheus metrics for the query pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sheba",
		Name:      "llm_calls_total",
		Help:      "LLM calls by pipeline task and outcome.",
	}, []string{"task", "outcome"})

	llmCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sheba",
		Name:      "llm_call_duration_seconds",
		Help:      "LLM call latency by pipeline task.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task"})

	queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sheba",
		Name:      "queries_total",
		Help:      "Processed queries by planner intent.",
	}, []string{"intent"})

	shardErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sheba",
		Name:      "retriever_shard_errors_total",
		Help:      "Shard queries that failed and were skipped.",
	}, []string{"collection"})

	rerankOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sheba",
		Name:      "rerank_passages_total",
		Help:      "Reranked passages by outcome (kept, cut, dropped, overflow).",
	}, []string{"outcome"})
)

// RecordLLMCall records one LLM call for a pipeline task.
func RecordLLMCall(task string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	llmCalls.WithLabelValues(task, outcome).Inc()
	llmCallDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordQuery records one processed query by planner intent.
func RecordQuery(intent string) {
	queries.WithLabelValues(intent).Inc()
}

// RecordShardError records a skipped shard.
func RecordShardError(collection string) {
	shardErrors.WithLabelValues(collection).Inc()
}

// RecordRerankOutcome records the fate of one reranked passage.
func RecordRerankOutcome(outcome string) {
	rerankOutcomes.WithLabelValues(outcome).Inc()
}
