package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/lithammer/shortuuid/v4"

	"github.com/kagent-dev/agentdesk/pkg/adk/conversation"
	"github.com/kagent-dev/agentdesk/pkg/adk/llm"
)

// pendingCall is a tool call being assembled from stream deltas
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// pendingCalls accumulates tool call deltas keyed by call ID, keeping the
// order in which the model first emitted each call.
type pendingCalls struct {
	order []*pendingCall
	byID  map[string]*pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{byID: make(map[string]*pendingCall)}
}

func (p *pendingCalls) add(d llm.ToolCallDelta) {
	id := d.ID
	if id == "" {
		// continuation of the most recent call
		if n := len(p.order); n > 0 {
			id = p.order[n-1].id
		} else {
			id = "call_" + shortuuid.New()
		}
	}
	call, ok := p.byID[id]
	if !ok {
		call = &pendingCall{id: id}
		p.byID[id] = call
		p.order = append(p.order, call)
	}
	if d.Name != "" {
		call.name = d.Name
	}
	call.args.WriteString(d.ArgumentsDelta)
}

func (p *pendingCalls) len() int {
	return len(p.order)
}

// assembledCall is a complete request plus the argument decoding error, if any
type assembledCall struct {
	request conversation.ToolCallRequest
	argErr  error
}

// assemble decodes the accumulated arguments. IDs already used in the
// conversation are replaced so that every request ID stays unique.
func (p *pendingCalls) assemble(used map[string]struct{}) []assembledCall {
	out := make([]assembledCall, 0, len(p.order))
	for _, call := range p.order {
		id := call.id
		if _, dup := used[id]; dup {
			id = "call_" + shortuuid.New()
		}
		used[id] = struct{}{}

		ac := assembledCall{request: conversation.ToolCallRequest{ID: id, Name: call.name}}
		raw := strings.TrimSpace(call.args.String())
		if raw == "" {
			ac.request.Arguments = map[string]any{}
		} else {
			var args map[string]any
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				ac.argErr = err
			} else {
				if args == nil {
					args = map[string]any{}
				}
				ac.request.Arguments = args
			}
		}
		out = append(out, ac)
	}
	return out
}
