package llm

import (
	"context"

	"github.com/kagent-dev/agentdesk/pkg/adk/auth"
	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
)

// Transport sends a conversation to a model endpoint and streams the reply.
//
// The returned channel yields zero or more deltas followed by exactly one
// Completed or Failed event, then closes. When ctx is cancelled the channel
// closes without a terminal event. A stream cannot be restarted; every
// attempt is a new call.
type Transport interface {
	Stream(ctx context.Context, req *Request) <-chan StreamEvent
	// Model returns the model name requests are sent to
	Model() string
}

// Request is everything a transport needs to build one wire request
type Request struct {
	System      string              `json:"system,omitempty"`
	Turns       []conversation.Turn `json:"turns"`
	Tools       []ToolDefinition    `json:"tools,omitempty"`
	Credentials auth.Credentials    `json:"-"`
}

// ToolDefinition defines a tool that can be called by the LLM
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Usage represents token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add returns the sum of u and o
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// StreamEvent is one of TextDelta, ToolCallDelta, Completed or Failed
type StreamEvent interface {
	streamEvent()
}

// TextDelta is a fragment of assistant text
type TextDelta struct {
	Text string
}

// ToolCallDelta is a fragment of a tool call. The first delta for an ID
// carries the tool name; argument fragments concatenate into JSON.
type ToolCallDelta struct {
	ID             string
	Name           string
	ArgumentsDelta string
}

// Completed ends a successful stream
type Completed struct {
	StopReason string
	Usage      Usage
}

// Failed ends an unsuccessful stream
type Failed struct {
	Reason FailureReason
	Err    error
}

func (TextDelta) streamEvent()     {}
func (ToolCallDelta) streamEvent() {}
func (Completed) streamEvent()     {}
func (Failed) streamEvent()        {}

// EventType names an event for logs and metrics
func EventType(ev StreamEvent) string {
	switch ev.(type) {
	case TextDelta:
		return "text_delta"
	case ToolCallDelta:
		return "tool_call_delta"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Hold:
		return "hold"
	}
	return "unknown"
}

// IsTerminal reports whether ev ends a stream
func IsTerminal(ev StreamEvent) bool {
	switch ev.(type) {
	case Completed, Failed:
		return true
	}
	return false
}
