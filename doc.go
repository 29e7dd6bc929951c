// Package multiai provides a multi-agent LLM orchestration runtime.
//
// Multi-AI routes a single user request across a catalog of models and
// specialized agents: it detects the use case, selects models by quality,
// speed, privacy, and cost, fans the request out to matching agents in
// parallel, executes model-emitted tool calls, and aggregates the agent
// responses into one answer.
//
// # Quick Start
//
// Configure the runtime from a YAML catalog and process a request:
//
//	import "github.com/0x00000002/multi-ai/pkg/ai"
//
//	if err := ai.Configure(ai.WithConfigFile("config.yaml")); err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := ai.New("", "You are a helpful assistant")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := client.Request(ctx, "Write a Python palindrome checker")
//
// Or import specific packages:
//
//	import (
//	    "github.com/0x00000002/multi-ai/pkg/agent"
//	    "github.com/0x00000002/multi-ai/pkg/llms"
//	    "github.com/0x00000002/multi-ai/pkg/tools"
//	)
//
// # Key Features
//
//   - Declarative YAML catalog of providers, models, agents, and use cases
//   - Capability-based model selection with cost-aware filtering
//   - Parallel multi-agent orchestration with LLM response aggregation
//   - Schema-validated tool registration and bounded tool-call loops
//   - Conversation history with thought extraction and per-agent isolation
//   - Usage metrics persisted as JSON with windowed aggregation
//
// # Architecture
//
//	Client → Orchestrator → Analyzer → Agents (parallel) → Aggregator
//	                ↘ Selector → Providers (openai/anthropic/gemini/ollama)
//
// Providers are reached over plain HTTP with retry and rate-limit handling;
// tool execution and provider calls carry OpenTelemetry spans.
package multiai
