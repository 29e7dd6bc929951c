package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// FuncTool adapts a plain Go function into a Tool. The parameter schema is
// either supplied explicitly or derived from an argument struct.
type FuncTool struct {
	info ToolInfo
	fn   func(ctx context.Context, args map[string]interface{}) (string, error)
}

// NewFuncTool wraps fn with an explicit parameter schema. A nil schema
// means the tool takes no arguments.
func NewFuncTool(name, description string, parameters map[string]interface{},
	fn func(ctx context.Context, args map[string]interface{}) (string, error)) *FuncTool {
	return &FuncTool{
		info: ToolInfo{Name: name, Description: description, Parameters: parameters},
		fn:   fn,
	}
}

// NewFuncToolFor wraps fn, deriving the parameter schema from the struct
// type argsType via reflection.
func NewFuncToolFor(name, description string, argsType interface{},
	fn func(ctx context.Context, args map[string]interface{}) (string, error)) (*FuncTool, error) {
	params, err := SchemaFor(argsType)
	if err != nil {
		return nil, err
	}
	return NewFuncTool(name, description, params, fn), nil
}

// SchemaFor derives a JSON schema map from a struct type.
func SchemaFor(argsType interface{}) (map[string]interface{}, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(argsType)
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to render schema: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to render schema: %w", err)
	}
	// Providers reject draft metadata keys in parameter schemas.
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

func (t *FuncTool) GetInfo() ToolInfo { return t.info }

func (t *FuncTool) GetName() string { return t.info.Name }

func (t *FuncTool) GetDescription() string { return t.info.Description }

func (t *FuncTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	content, err := t.fn(ctx, args)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error(), ToolName: t.info.Name}, err
	}
	return ToolResult{Success: true, Content: content, ToolName: t.info.Name}, nil
}
