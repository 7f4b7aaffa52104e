package llm

import (
	"context"
	"slices"
	"sync"
)

// Hold pauses a scripted stream until Release is closed or the stream's
// context is done. It is never forwarded to the consumer.
type Hold struct {
	Release <-chan struct{}
}

func (Hold) streamEvent() {}

// ScriptedTransport replays predetermined event sequences, one per Stream
// call, and records every request. It never touches the network.
type ScriptedTransport struct {
	mu       sync.Mutex
	model    string
	scripts  [][]StreamEvent
	requests []Request
}

// NewScriptedTransport creates a transport that answers the n-th Stream
// call with scripts[n]. Calls beyond the scripts fail as malformed.
func NewScriptedTransport(scripts ...[]StreamEvent) *ScriptedTransport {
	return &ScriptedTransport{model: "scripted", scripts: scripts}
}

// Enqueue appends another scripted response
func (s *ScriptedTransport) Enqueue(events ...StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, events)
}

func (s *ScriptedTransport) Model() string {
	return s.model
}

// Requests returns copies of the requests received so far
func (s *ScriptedTransport) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Calls returns the number of Stream calls so far
func (s *ScriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *ScriptedTransport) Stream(ctx context.Context, req *Request) <-chan StreamEvent {
	s.mu.Lock()
	call := len(s.requests)
	if req != nil {
		recorded := *req
		recorded.Turns = slices.Clone(req.Turns)
		recorded.Tools = slices.Clone(req.Tools)
		s.requests = append(s.requests, recorded)
	} else {
		s.requests = append(s.requests, Request{})
	}
	var script []StreamEvent
	if call < len(s.scripts) {
		script = s.scripts[call]
	}
	s.mu.Unlock()

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		if script == nil {
			select {
			case ch <- NewFailed(FailureMalformedResponse, "no scripted response", nil):
			case <-ctx.Done():
			}
			return
		}
		for _, ev := range script {
			if hold, ok := ev.(Hold); ok {
				select {
				case <-hold.Release:
					continue
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
			if IsTerminal(ev) {
				return
			}
		}
	}()
	return ch
}
