package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/protocol"
)

type scriptedProvider struct {
	reply *llms.Reply
	err   error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Request(ctx context.Context, messages []protocol.Message, opts *llms.RequestOptions) (*llms.Reply, error) {
	return p.reply, p.err
}

func (p *scriptedProvider) Stream(ctx context.Context, messages []protocol.Message, opts *llms.RequestOptions) (<-chan llms.StreamChunk, error) {
	ch := make(chan llms.StreamChunk)
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) AddToolMessage(messages []protocol.Message, name, content, toolCallID string) []protocol.Message {
	return append(protocol.CloneMessages(messages), protocol.NewToolMessage(name, content, toolCallID))
}

func (p *scriptedProvider) Capabilities() llms.Capability { return 0 }

func (p *scriptedProvider) Close() error { return nil }

var testAgents = map[string]string{
	"coding_assistant": "writes code",
	"listener":         "transcribes audio",
	"translator":       "translates text",
}

func TestAnalyzeRequestSortsByConfidence(t *testing.T) {
	p := &scriptedProvider{reply: &llms.Reply{
		Content: `[["listener", 0.7], ["coding_assistant", 0.95], ["translator", 0.3]]`,
	}}
	a := New(p, "small-model")

	got := a.AnalyzeRequest(context.Background(), "write a function", testAgents)
	if len(got) != 2 {
		t.Fatalf("matches = %+v, want 2 above threshold", got)
	}
	if got[0].AgentID != "coding_assistant" || got[1].AgentID != "listener" {
		t.Errorf("order = %+v, want confidence descending", got)
	}
	for _, m := range got {
		if m.Confidence < DefaultConfidenceThreshold {
			t.Errorf("confidence %f below threshold", m.Confidence)
		}
	}
}

func TestAnalyzeRequestRegexFallback(t *testing.T) {
	p := &scriptedProvider{reply: &llms.Reply{
		Content: `I think ["coding_assistant", 0.9] fits best, maybe ["listener", 0.65] too`,
	}}
	a := New(p, "small-model")

	got := a.AnalyzeRequest(context.Background(), "write a function", testAgents)
	if len(got) != 2 {
		t.Fatalf("matches = %+v", got)
	}
	if got[0].AgentID != "coding_assistant" {
		t.Errorf("first match = %+v", got[0])
	}
}

func TestAnalyzeRequestDropsUnknownAgents(t *testing.T) {
	p := &scriptedProvider{reply: &llms.Reply{
		Content: `[["made_up", 0.99], ["translator", 0.8]]`,
	}}
	a := New(p, "small-model")

	got := a.AnalyzeRequest(context.Background(), "translate this", testAgents)
	if len(got) != 1 || got[0].AgentID != "translator" {
		t.Fatalf("matches = %+v", got)
	}
}

func TestAnalyzeRequestErrorYieldsEmpty(t *testing.T) {
	a := New(&scriptedProvider{err: errors.New("down")}, "small-model")
	if got := a.AnalyzeRequest(context.Background(), "anything", testAgents); got != nil {
		t.Errorf("matches = %+v, want nil on provider failure", got)
	}
}

func TestAnalyzeRequestUnparseableReply(t *testing.T) {
	a := New(&scriptedProvider{reply: &llms.Reply{Content: "I cannot pick an agent for this."}}, "small-model")
	if got := a.AnalyzeRequest(context.Background(), "anything", testAgents); got != nil {
		t.Errorf("matches = %+v, want nil on an unparseable reply", got)
	}

	_, err := parseAgentPairs("I cannot pick an agent for this.")
	if !aierrors.IsKind(err, aierrors.KindResponseParseFailed) {
		t.Errorf("parse error = %v, want response_parse_failed", err)
	}

	// An explicit empty array is a valid "no agents" reply, not a failure.
	matches, err := parseAgentPairs("[]")
	if err != nil || matches != nil {
		t.Errorf("empty array parsed to (%v, %v)", matches, err)
	}
}

func TestAnalyzeRequestCustomThreshold(t *testing.T) {
	p := &scriptedProvider{reply: &llms.Reply{
		Content: `[["translator", 0.5]]`,
	}}
	a := New(p, "small-model", WithThreshold(0.4))

	got := a.AnalyzeRequest(context.Background(), "translate", testAgents)
	if len(got) != 1 {
		t.Fatalf("matches = %+v", got)
	}
}

func TestAnalyzeTools(t *testing.T) {
	p := &scriptedProvider{reply: &llms.Reply{Content: `["web_search", "bogus"]`}}
	a := New(p, "small-model")

	got := a.AnalyzeTools(context.Background(), "look this up", map[string]string{
		"web_search":  "searches the web",
		"get_weather": "weather",
	})
	if len(got) != 1 || got[0] != "web_search" {
		t.Fatalf("tools = %v", got)
	}
}

func TestAnalyzeToolsErrorYieldsEmpty(t *testing.T) {
	a := New(&scriptedProvider{err: errors.New("down")}, "small-model")
	if got := a.AnalyzeTools(context.Background(), "x", map[string]string{"t": "d"}); got != nil {
		t.Errorf("tools = %v", got)
	}
}
