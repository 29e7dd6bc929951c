package llms

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0x00000002/multi-ai/pkg/protocol"
)

// Tool emulation for providers without a native tool-calling API. The
// provider is told about tools through an instruction block appended to the
// system prompt, and a reply that is a single strict JSON object of the
// prescribed shape is interpreted as a tool call. Anything else is treated
// as plain text, so a model that merely mentions JSON is never misread as
// calling a tool.

const emulatedCallShape = `{"tool": "TOOL_NAME", "parameters": {...}}`

// BuildToolInstruction renders the emulation instruction block for a set of
// tools.
func BuildToolInstruction(tools []ToolDefinition) string {
	if len(tools) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("You have access to the following tools:\n\n")
	for _, t := range tools {
		b.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
		if len(t.Parameters) > 0 {
			if schema, err := json.Marshal(t.Parameters); err == nil {
				b.WriteString(fmt.Sprintf("  parameters schema: %s\n", schema))
			}
		}
	}
	b.WriteString("\nTo call a tool, reply with ONLY a single JSON object of the form:\n")
	b.WriteString(emulatedCallShape)
	b.WriteString("\nDo not wrap it in any other text. ")
	b.WriteString("If no tool is needed, answer normally.")
	return b.String()
}

type emulatedCall struct {
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ParseEmulatedToolCall inspects a model reply for an emulated tool call.
// The entire reply, after trimming whitespace and at most one fenced code
// block, must be a single JSON object with a non-empty "tool" field; partial
// matches inside surrounding prose are rejected. The returned call carries a
// synthetic id derived from the tool name.
func ParseEmulatedToolCall(content string) (*protocol.ToolCall, bool) {
	candidate := strings.TrimSpace(content)
	candidate = stripCodeFence(candidate)
	if candidate == "" || candidate[0] != '{' {
		return nil, false
	}

	var call emulatedCall
	dec := json.NewDecoder(strings.NewReader(candidate))
	if err := dec.Decode(&call); err != nil {
		return nil, false
	}
	// Trailing content after the object means the reply was not just a call.
	if dec.More() {
		return nil, false
	}
	if rest := strings.TrimSpace(candidate[int(dec.InputOffset()):]); rest != "" {
		return nil, false
	}
	if call.Tool == "" {
		return nil, false
	}

	args := call.Parameters
	if args == nil {
		args = map[string]interface{}{}
	}
	return &protocol.ToolCall{
		ID:        "tool-" + call.Tool,
		Name:      call.Tool,
		Arguments: args,
	}, true
}

// toolOffered reports whether name is among the tools advertised to the
// model for this request.
func toolOffered(tools []ToolDefinition, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// stripCodeFence removes one surrounding markdown code fence, with or
// without a language tag.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		// Drop a language tag such as ```json.
		first := strings.TrimSpace(body[:idx])
		if first == "" || !strings.ContainsAny(first, "{}") {
			body = body[idx+1:]
		}
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
