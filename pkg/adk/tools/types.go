package tools

import (
	"context"
	"encoding/json"
	"math"

	"github.com/go-logr/logr"
)

// Tool defines the interface for agent tools
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the tool arguments
	Schema() map[string]any
	RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error)
}

// Context contains context information for tool execution
type Context struct {
	RunID       string
	SessionID   string
	ToolCallID  string
	ProjectRoot string
	Logger      logr.Logger
}

// Spec is the description of a tool advertised to the model
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// BaseTool provides common functionality for tools
type BaseTool struct {
	name        string
	description string
	schema      map[string]any
}

// NewBaseTool creates a new BaseTool
func NewBaseTool(name, description string, schema map[string]any) BaseTool {
	if schema == nil {
		schema = ObjectSchema(nil)
	}
	return BaseTool{
		name:        name,
		description: description,
		schema:      schema,
	}
}

// Name returns the tool name
func (b *BaseTool) Name() string {
	return b.name
}

// Description returns the tool description
func (b *BaseTool) Description() string {
	return b.description
}

// Schema returns the argument schema
func (b *BaseTool) Schema() map[string]any {
	return b.schema
}

// FuncTool adapts a plain function into a Tool
type FuncTool struct {
	BaseTool
	fn func(ctx context.Context, args map[string]any, toolCtx *Context) (string, error)
}

// NewFuncTool creates a tool backed by fn
func NewFuncTool(name, description string, schema map[string]any, fn func(ctx context.Context, args map[string]any, toolCtx *Context) (string, error)) *FuncTool {
	return &FuncTool{
		BaseTool: NewBaseTool(name, description, schema),
		fn:       fn,
	}
}

func (f *FuncTool) RunAsync(ctx context.Context, args map[string]any, toolCtx *Context) (string, error) {
	return f.fn(ctx, args, toolCtx)
}

// ObjectSchema builds an object schema from property schemas
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty describes a string argument
func StringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// IntegerProperty describes an integer argument
func IntegerProperty(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

// BooleanProperty describes a boolean argument
func BooleanProperty(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

// StringArg returns a string argument
func StringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

// IntArg returns an integral argument decoded from JSON
func IntArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if math.Trunc(v) != v {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// BoolArg returns a boolean argument
func BoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key].(bool)
	return v, ok
}
