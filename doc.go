// Package sheba is a conversational retrieval engine for Bangladesh
// government service information.
//
// Each user message is classified by a planner LLM into one of nine intents.
// In-domain service questions run the full pipeline: sharded vector retrieval
// fused with Reciprocal Rank Fusion, parallel LLM relevance judging, and
// streamed answer synthesis grounded in the surviving passages. The other
// intents (chit-chat, identity questions, out-of-domain requests and so on)
// are answered by routed direct prompts. Every finished exchange is recorded
// twice: verbatim for the user-facing transcript and summarized for prompt
// context.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/sheba-ai/sheba/cmd/sheba@latest
//
// Run an interactive conversation:
//
//	sheba chat --config config.yaml
//
// # Using as Go Library
//
//	import (
//	    "github.com/sheba-ai/sheba/pkg/agent"
//	    "github.com/sheba-ai/sheba/pkg/config"
//	)
//
//	cfg, err := config.Load("config.yaml")
//	a, err := agent.NewFromConfig(cfg, nil)
//	for event := range a.ProcessQuery(ctx, "পাসপোর্ট করতে কী লাগে?") {
//	    ...
//	}
//
// See configs/config.yaml for a complete configuration example.
package sheba
