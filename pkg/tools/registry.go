package tools

import (
	"github.com/0x00000002/multi-ai/pkg/aierrors"
	"github.com/0x00000002/multi-ai/pkg/llms"
	"github.com/0x00000002/multi-ai/pkg/registry"
)

// ToolRegistry holds tools keyed by name. Names are unique across the whole
// registry regardless of category.
type ToolRegistry struct {
	*registry.BaseRegistry[Tool]
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{BaseRegistry: registry.NewBaseRegistry[Tool]()}
}

// RegisterTool adds a tool, rejecting duplicate names.
func (r *ToolRegistry) RegisterTool(tool Tool) error {
	if err := r.Register(tool.GetName(), tool); err != nil {
		return aierrors.Wrap(aierrors.KindToolAlreadyRegistered,
			"tool "+tool.GetName()+" is already registered", err)
	}
	return nil
}

// Infos returns the ToolInfo of every registered tool, sorted by name.
func (r *ToolRegistry) Infos() []ToolInfo {
	tools := r.List()
	infos := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, t.GetInfo())
	}
	return infos
}

// Definitions converts a subset of tools into provider-neutral definitions.
// Unknown names are skipped. A nil subset selects every tool.
func (r *ToolRegistry) Definitions(subset []string) []llms.ToolDefinition {
	var defs []llms.ToolDefinition
	for _, t := range r.pick(subset) {
		info := t.GetInfo()
		defs = append(defs, llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.Parameters,
		})
	}
	return defs
}

// FormatFor renders a subset of tools in a provider's wire format. Unknown
// providers get an empty list so a request can still go out without tools.
func (r *ToolRegistry) FormatFor(providerType string, subset []string) []map[string]interface{} {
	selected := r.pick(subset)
	if len(selected) == 0 {
		return nil
	}

	switch providerType {
	case "openai", "ollama":
		out := make([]map[string]interface{}, 0, len(selected))
		for _, t := range selected {
			info := t.GetInfo()
			out = append(out, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        info.Name,
					"description": info.Description,
					"parameters":  info.Parameters,
				},
			})
		}
		return out

	case "anthropic":
		out := make([]map[string]interface{}, 0, len(selected))
		for _, t := range selected {
			info := t.GetInfo()
			out = append(out, map[string]interface{}{
				"name":         info.Name,
				"description":  info.Description,
				"input_schema": info.Parameters,
			})
		}
		return out

	case "gemini":
		// Gemini takes one object holding every declaration.
		decls := make([]map[string]interface{}, 0, len(selected))
		for _, t := range selected {
			info := t.GetInfo()
			decls = append(decls, map[string]interface{}{
				"name":        info.Name,
				"description": info.Description,
				"parameters":  info.Parameters,
			})
		}
		return []map[string]interface{}{{"function_declarations": decls}}

	default:
		return nil
	}
}

func (r *ToolRegistry) pick(subset []string) []Tool {
	if subset == nil {
		return r.List()
	}
	var out []Tool
	for _, name := range subset {
		if t, ok := r.Get(name); ok {
			out = append(out, t)
		}
	}
	return out
}
