// Package llms defines the provider contract and the adapters for the four
// supported backends: OpenAI, Anthropic, Gemini and Ollama.
//
// Adapters own role mapping and tool-call handling so agents never see
// provider differences. Backends with a native tool-calling API surface tool
// calls directly; the Gemini adapter emulates tool calling by injecting an
// instruction block and parsing a strict JSON reply (see emulation.go).
package llms

import (
	"context"

	"github.com/0x00000002/multi-ai/pkg/protocol"
)

// Capability flags declare optional provider features.
type Capability uint8

const (
	CapabilityTools Capability = 1 << iota
	CapabilityImages
	CapabilityAudioIn
	CapabilityAudioOut
)

// Has reports whether all flags in want are present.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// ToolDefinition is a tool as presented to a provider: name, description
// and a JSON schema for its parameters.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// RequestOptions carries per-request knobs. Zero values fall back to the
// provider's configured defaults.
type RequestOptions struct {
	// Model is the provider-side model identifier.
	Model string

	MaxTokens   int
	Temperature *float64

	// Tools the model may call on this request.
	Tools []ToolDefinition
}

// Reply is a provider response normalized across backends.
type Reply struct {
	Content      string
	ToolCalls    []*protocol.ToolCall
	FinishReason string

	InputTokens  int
	OutputTokens int
}

// StreamChunk is one element of a streaming response. Err is set on the
// terminal chunk of a failed stream.
type StreamChunk struct {
	Text string
	Err  error
}

// Provider is the uniform capability contract every backend implements.
type Provider interface {
	// Name returns the provider id (openai, anthropic, gemini, ollama).
	Name() string

	// Request performs a non-streaming request.
	Request(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (*Reply, error)

	// Stream performs a streaming request, yielding text chunks. The
	// channel is closed at end of stream.
	Stream(ctx context.Context, messages []protocol.Message, opts *RequestOptions) (<-chan StreamChunk, error)

	// AddToolMessage returns a new message list with a provider-appropriate
	// tool-response entry appended.
	AddToolMessage(messages []protocol.Message, name, content, toolCallID string) []protocol.Message

	// Capabilities declares optional features.
	Capabilities() Capability

	Close() error
}
