package conversation

import (
	"testing"

	"github.com/0x00000002/multi-ai/pkg/protocol"
)

func TestMessagesKeepInsertionOrder(t *testing.T) {
	m := NewManager()
	m.AddMessage(protocol.NewSystemMessage("be brief"))
	m.AddInteraction("hi", "hello")

	msgs := m.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	wantRoles := []protocol.Role{protocol.RoleSystem, protocol.RoleUser, protocol.RoleAssistant}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("messages[%d].Role = %s, want %s", i, msgs[i].Role, want)
		}
	}

	last, ok := m.Last()
	if !ok || last.Content != "hello" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestThoughtExtractionKeepsContentWhenShowing(t *testing.T) {
	m := NewManager(WithShowThinking(true))
	m.AddMessage(protocol.NewAssistantMessage("<think>step1</think>Answer: 7"))

	last, _ := m.Last()
	if last.Thoughts != "step1" {
		t.Errorf("Thoughts = %q", last.Thoughts)
	}
	if last.Content != "<think>step1</think>Answer: 7" {
		t.Errorf("Content = %q, should be untouched", last.Content)
	}
}

func TestThoughtExtractionStripsWhenHiding(t *testing.T) {
	m := NewManager(WithShowThinking(false))
	m.AddMessage(protocol.NewAssistantMessage("<think>step1</think>Answer: 7"))

	last, _ := m.Last()
	if last.Thoughts != "step1" {
		t.Errorf("Thoughts = %q", last.Thoughts)
	}
	if last.Content != "Answer: 7" {
		t.Errorf("Content = %q, want %q", last.Content, "Answer: 7")
	}
}

func TestThoughtExtractionPrefixAndSuffix(t *testing.T) {
	m := NewManager(WithShowThinking(false))
	m.AddMessage(protocol.NewAssistantMessage("Before <think>reasoning\nacross lines</think> after"))

	last, _ := m.Last()
	if last.Thoughts != "reasoning\nacross lines" {
		t.Errorf("Thoughts = %q", last.Thoughts)
	}
	if last.Content != "Before  after" {
		t.Errorf("Content = %q", last.Content)
	}
}

func TestThoughtExtractionAllThoughtFallsBackAfterLastClose(t *testing.T) {
	m := NewManager(WithShowThinking(false))
	m.AddMessage(protocol.NewAssistantMessage("<think>a</think>  <think>b</think>final"))

	last, _ := m.Last()
	// Only the first block is extracted; stripping it leaves the second
	// block and the tail intact.
	if last.Thoughts != "a" {
		t.Errorf("Thoughts = %q", last.Thoughts)
	}
	if last.Content != "<think>b</think>final" {
		t.Errorf("Content = %q", last.Content)
	}
}

func TestThoughtExtractionEmptyAfterStrip(t *testing.T) {
	m := NewManager(WithShowThinking(false))
	m.AddMessage(protocol.NewAssistantMessage("<think>only thoughts</think>"))

	last, _ := m.Last()
	if last.Content != "" {
		t.Errorf("Content = %q, want empty", last.Content)
	}
	if last.Thoughts != "only thoughts" {
		t.Errorf("Thoughts = %q", last.Thoughts)
	}
}

func TestThoughtExtractionDisabled(t *testing.T) {
	m := NewManager(WithExtractThoughts(false), WithShowThinking(false))
	m.AddMessage(protocol.NewAssistantMessage("<think>x</think>y"))

	last, _ := m.Last()
	if last.Thoughts != "" || last.Content != "<think>x</think>y" {
		t.Errorf("message = %+v, extraction should be off", last)
	}
}

func TestUserMessagesNotExtracted(t *testing.T) {
	m := NewManager(WithShowThinking(false))
	m.AddMessage(protocol.NewUserMessage("<think>not a thought</think>hello"))

	last, _ := m.Last()
	if last.Thoughts != "" {
		t.Errorf("user message got thoughts: %q", last.Thoughts)
	}
}

func TestResetClearsEverything(t *testing.T) {
	m := NewManager()
	m.AddInteraction("hi", "hello")
	m.SetMetadata("request_id", "r1")
	m.SetContext("topic", "weather")

	m.Reset()

	if m.Len() != 0 {
		t.Errorf("messages survived reset: %d", m.Len())
	}
	if _, ok := m.GetMetadata("request_id"); ok {
		t.Error("metadata survived reset")
	}
	if _, ok := m.GetContext("topic"); ok {
		t.Error("context survived reset")
	}
}

func TestClearMessagesKeepsMetadata(t *testing.T) {
	m := NewManager()
	m.AddInteraction("hi", "hello")
	m.SetMetadata("k", "v")

	m.ClearMessages()

	if m.Len() != 0 {
		t.Error("messages survived ClearMessages")
	}
	if _, ok := m.GetMetadata("k"); !ok {
		t.Error("ClearMessages must not touch metadata")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	m := NewManager()
	m.AddInteraction("hi", "hello")
	m.SetMetadata("k", "v")

	c := m.Clone()
	c.AddMessage(protocol.NewUserMessage("more"))
	c.SetMetadata("k", "changed")

	if m.Len() != 2 {
		t.Errorf("original grew with clone: %d", m.Len())
	}
	if v, _ := m.GetMetadata("k"); v != "v" {
		t.Errorf("original metadata = %v", v)
	}
}
