// Package protocol defines the data contracts shared by providers, tools,
// agents and the orchestrator: messages, tool calls and roles.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ValidRole reports whether r is one of the four known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// ToolCall is a model-emitted instruction to invoke a tool.
// Two tool calls are considered the same call iff their IDs match.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// ArgumentsJSON returns the call arguments as a JSON document.
func (tc *ToolCall) ArgumentsJSON() ([]byte, error) {
	if tc.Arguments == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(tc.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments for tool call %s: %w", tc.ID, err)
	}
	return data, nil
}

// Message is one ordered element of a conversation.
// Messages with RoleTool always carry the name of the tool that produced them.
type Message struct {
	Role       Role                   `json:"role"`
	Content    string                 `json:"content"`
	Name       string                 `json:"name,omitempty"`
	Thoughts   string                 `json:"thoughts,omitempty"`
	ToolCalls  []*ToolCall            `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a tool response message. Tool messages must carry
// the tool name so providers can map them onto their wire formats.
func NewToolMessage(name, content, toolCallID string) Message {
	return Message{Role: RoleTool, Content: content, Name: name, ToolCallID: toolCallID}
}

// CloneMessages returns a deep-enough copy of a message slice: the slice and
// the per-message tool call slices are copied, content strings are shared.
func CloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	for i := range out {
		if len(out[i].ToolCalls) > 0 {
			calls := make([]*ToolCall, len(out[i].ToolCalls))
			copy(calls, out[i].ToolCalls)
			out[i].ToolCalls = calls
		}
	}
	return out
}
