package agent

import (
	"context"
	"testing"
	"time"

	"github.com/0x00000002/multi-ai/pkg/config"
	"github.com/0x00000002/multi-ai/pkg/conversation"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/metrics"
	"github.com/0x00000002/multi-ai/pkg/models"
	"github.com/0x00000002/multi-ai/pkg/protocol"
	"github.com/0x00000002/multi-ai/pkg/tools"
)

// fakeProvider scripts replies through a handler so tests can react to the
// message history.
type fakeProvider struct {
	name    string
	handler func(messages []protocol.Message, opts *llms.RequestOptions) (*llms.Reply, error)
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Request(ctx context.Context, messages []protocol.Message, opts *llms.RequestOptions) (*llms.Reply, error) {
	return p.handler(messages, opts)
}

func (p *fakeProvider) Stream(ctx context.Context, messages []protocol.Message, opts *llms.RequestOptions) (<-chan llms.StreamChunk, error) {
	reply, err := p.handler(messages, opts)
	if err != nil {
		return nil, err
	}
	ch := make(chan llms.StreamChunk, 1)
	ch <- llms.StreamChunk{Text: reply.Content}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) AddToolMessage(messages []protocol.Message, name, content, toolCallID string) []protocol.Message {
	return append(protocol.CloneMessages(messages), protocol.NewToolMessage(name, content, toolCallID))
}

func (p *fakeProvider) Capabilities() llms.Capability { return llms.CapabilityTools }

func (p *fakeProvider) Close() error { return nil }

func textReply(content string) func([]protocol.Message, *llms.RequestOptions) (*llms.Reply, error) {
	return func([]protocol.Message, *llms.RequestOptions) (*llms.Reply, error) {
		return &llms.Reply{Content: content, FinishReason: "stop"}, nil
	}
}

// hasToolResult reports whether the history already contains a tool reply.
func hasToolResult(messages []protocol.Message) bool {
	for _, m := range messages {
		if m.Role == protocol.RoleTool {
			return true
		}
	}
	return false
}

// testEnv bundles the collaborators for orchestrator tests.
type testEnv struct {
	deps     Deps
	registry *Registry
	factory  *Factory
}

// newTestEnv assembles a catalog with one model per provider entry and the
// standard builtin agents.
func newTestEnv(t *testing.T, providers map[string]llms.Provider) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Models:    map[string]*config.ModelConfig{},
		Providers: map[string]*config.ProviderConfig{},
		Agents: map[string]*config.AgentConfig{
			"coding_assistant": {Description: "writes code"},
			"listener":         {Description: "handles transcribed audio"},
		},
		UseCases: map[string]*config.UseCaseConfig{
			"chat":            {Quality: config.QualityMedium, Speed: config.SpeedStandard},
			"coding":          {Quality: config.QualityMedium, Speed: config.SpeedStandard},
			"solidity_coding": {Quality: config.QualityMedium, Speed: config.SpeedStandard},
			"summarization":   {Quality: config.QualityMedium, Speed: config.SpeedStandard},
		},
	}

	reg := llms.NewProviderRegistry()
	for name, p := range providers {
		modelID := "model-" + name
		cfg.Models[modelID] = &config.ModelConfig{
			ModelID: modelID, Provider: name,
			Quality: config.QualityMedium, Speed: config.SpeedStandard,
			Privacy: config.PrivacyExternal,
		}
		cfg.Providers[name] = &config.ProviderConfig{Type: "openai", APIKeyEnv: "X"}
		if err := reg.Register(name, p); err != nil {
			t.Fatal(err)
		}
		if cfg.DefaultModel == "" {
			cfg.DefaultModel = modelID
		}
	}

	store := config.NewStore(cfg)

	toolReg := tools.NewToolRegistry()
	executor, err := tools.NewExecutor(toolReg, tools.WithSleepFunc(func(d time.Duration) {}))
	if err != nil {
		t.Fatal(err)
	}

	deps := Deps{
		Store:        store,
		Providers:    reg,
		Tools:        toolReg,
		Executor:     executor,
		Selector:     models.NewSelector(store),
		Metrics:      metrics.NewService(""),
		Conversation: conversation.NewManager(),
	}

	agentReg := NewRegistry()
	RegisterBuiltins(agentReg)

	return &testEnv{
		deps:     deps,
		registry: agentReg,
		factory:  NewFactory(agentReg, deps),
	}
}
