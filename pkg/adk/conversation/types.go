package conversation

import (
	"encoding/json"
	"time"
)

// Role identifies who produced a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallRequest is a model-issued request to invoke a tool
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ArgumentsJSON returns the arguments encoded as a JSON object.
func (r ToolCallRequest) ArgumentsJSON() string {
	if len(r.Arguments) == 0 {
		return "{}"
	}
	data, err := json.Marshal(r.Arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ToolError is the structured error payload of a failed tool call
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToolCallResult answers exactly one ToolCallRequest
type ToolCallResult struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Output string     `json:"output,omitempty"`
	Error  *ToolError `json:"error,omitempty"`
}

// IsError reports whether the call failed
func (r ToolCallResult) IsError() bool {
	return r.Error != nil
}

// Content renders the result the way it is shown to the model.
func (r ToolCallResult) Content() string {
	if r.Error != nil {
		data, _ := json.Marshal(map[string]any{"error": r.Error})
		return string(data)
	}
	return r.Output
}

// Turn is one role-attributed unit of conversation content.
// A turn is immutable once appended.
type Turn struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Text      string            `json:"text,omitempty"`
	ToolCalls []ToolCallRequest `json:"tool_calls,omitempty"`
	Result    *ToolCallResult   `json:"result,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewUserTurn creates a user turn
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text, Timestamp: time.Now()}
}

// NewAssistantTurn creates an assistant turn with optional tool call requests
func NewAssistantTurn(text string, calls ...ToolCallRequest) Turn {
	return Turn{Role: RoleAssistant, Text: text, ToolCalls: calls, Timestamp: time.Now()}
}

// NewToolTurn creates a tool turn carrying one result
func NewToolTurn(result ToolCallResult) Turn {
	return Turn{Role: RoleTool, Result: &result, Timestamp: time.Now()}
}

func (t Turn) clone() Turn {
	out := t
	if t.ToolCalls != nil {
		out.ToolCalls = make([]ToolCallRequest, len(t.ToolCalls))
		for i, call := range t.ToolCalls {
			call.Arguments = cloneMap(call.Arguments)
			out.ToolCalls[i] = call
		}
	}
	if t.Result != nil {
		res := *t.Result
		if res.Error != nil {
			e := *res.Error
			res.Error = &e
		}
		out.Result = &res
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
