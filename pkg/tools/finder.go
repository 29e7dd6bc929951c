package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/protocol"
)

// ToolFinder selects the tools relevant to a request. Finders never fail a
// request: on error the caller proceeds with no tools.
type ToolFinder interface {
	FindTools(ctx context.Context, request string, available []ToolInfo) []string
}

// AIToolFinder asks a model which tools fit the request.
type AIToolFinder struct {
	provider llms.Provider
	model    string
}

func NewAIToolFinder(provider llms.Provider, model string) *AIToolFinder {
	return &AIToolFinder{provider: provider, model: model}
}

var toolNameListRe = regexp.MustCompile(`"([a-zA-Z0-9_\-]+)"`)

func (f *AIToolFinder) FindTools(ctx context.Context, request string, available []ToolInfo) []string {
	if len(available) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("Select the tools needed to handle the user request below. ")
	b.WriteString(`Reply with a JSON object of the form {"tools": ["tool_a", "tool_b"]}. `)
	b.WriteString(`Reply with {"tools": []} if no tool is needed.` + "\n\nAvailable tools:\n")
	for _, info := range available {
		b.WriteString(fmt.Sprintf("- %s: %s\n", info.Name, info.Description))
	}
	b.WriteString("\nUser request: ")
	b.WriteString(request)

	reply, err := f.provider.Request(ctx, []protocol.Message{protocol.NewUserMessage(b.String())},
		&llms.RequestOptions{Model: f.model})
	if err != nil {
		slog.Warn("Tool finder request failed, proceeding without tools", "error", err)
		return nil
	}

	names := parseToolNames(reply.Content)
	return filterKnown(names, available)
}

// parseToolNames reads a {"tools": [...]} reply, stripping one pair of code
// fences and falling back to array and quoted-string extraction when the
// model wraps the object in prose.
func parseToolNames(content string) []string {
	trimmed := stripFence(strings.TrimSpace(content))

	var wrapped struct {
		Tools []string `json:"tools"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapped); err == nil && wrapped.Tools != nil {
		return wrapped.Tools
	}

	if start := strings.IndexByte(trimmed, '['); start >= 0 {
		if end := strings.LastIndexByte(trimmed, ']'); end > start {
			var names []string
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &names); err == nil {
				return names
			}
		}
	}

	var names []string
	for _, m := range toolNameListRe.FindAllStringSubmatch(trimmed, -1) {
		names = append(names, m[1])
	}
	return names
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && !strings.ContainsAny(s[:idx], "{[") {
		s = s[idx+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func filterKnown(names []string, available []ToolInfo) []string {
	known := make(map[string]bool, len(available))
	for _, info := range available {
		known[info.Name] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, name := range names {
		if !known[name] {
			slog.Warn("Tool finder selected an unknown tool", "tool", name)
			continue
		}
		if !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	return out
}

// KeywordToolFinder matches request words against tool names and
// descriptions. Cheap fallback when no finder model is available.
type KeywordToolFinder struct{}

func NewKeywordToolFinder() *KeywordToolFinder {
	return &KeywordToolFinder{}
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "can": true,
	"do": true, "for": true, "from": true, "how": true, "i": true,
	"in": true, "is": true, "it": true, "me": true, "my": true,
	"of": true, "on": true, "or": true, "please": true, "that": true,
	"the": true, "this": true, "to": true, "what": true, "with": true,
	"you": true,
}

func (f *KeywordToolFinder) FindTools(_ context.Context, request string, available []ToolInfo) []string {
	prompt := strings.ToLower(request)

	var out []string
	for _, info := range available {
		for _, w := range tokenize(info.Name + " " + info.Description) {
			if strings.Contains(prompt, w) {
				out = append(out, info.Name)
				break
			}
		}
	}
	return out
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '_'
	})
	var out []string
	for _, f := range fields {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}
