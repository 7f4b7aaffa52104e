package orchestrator

import (
	"time"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	"github.com/kagent-dev/agentdesk/pkg/adk/llm"
)

// Event is published to a Sink while a run progresses
type Event interface {
	// Type names the event on the wire
	Type() string
}

// StateChanged reports a state machine transition
type StateChanged struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// TextDelta is model text forwarded as soon as it arrives
type TextDelta struct {
	Text string `json:"text"`
}

// Retrying tells the sink to drop the partial text of the failed attempt
type Retrying struct {
	Attempt int               `json:"attempt"`
	Delay   time.Duration     `json:"delay"`
	Reason  llm.FailureReason `json:"reason"`
}

// ToolCallStarted is published before a tool is invoked
type ToolCallStarted struct {
	Call conversation.ToolCallRequest `json:"call"`
}

// ToolCallFinished carries the result appended for a tool call
type ToolCallFinished struct {
	Result conversation.ToolCallResult `json:"result"`
}

// Finished is the last event of every run
type Finished struct {
	Outcome Outcome `json:"outcome"`
}

func (StateChanged) Type() string     { return "state" }
func (TextDelta) Type() string        { return "text_delta" }
func (Retrying) Type() string         { return "retrying" }
func (ToolCallStarted) Type() string  { return "tool_call" }
func (ToolCallFinished) Type() string { return "tool_result" }
func (Finished) Type() string         { return "finished" }

// Sink receives run events in order for a given run ID
type Sink interface {
	Publish(runID string, ev Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(runID string, ev Event)

func (f SinkFunc) Publish(runID string, ev Event) {
	f(runID, ev)
}

// Discard drops every event
var Discard Sink = SinkFunc(func(string, Event) {})
