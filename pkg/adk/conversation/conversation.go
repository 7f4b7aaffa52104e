package conversation

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

// Conversation is an append-only, ordered sequence of turns.
//
// Appends are serialized among writers; readers take snapshots without
// locking. The published slice only ever grows, so a snapshot taken at
// length n stays valid while later appends write past n.
type Conversation struct {
	mu    sync.Mutex
	turns atomic.Pointer[[]Turn]

	// guarded by mu
	outstanding map[string]struct{}
	callIDs     map[string]struct{}
}

// New creates an empty conversation
func New() *Conversation {
	c := &Conversation{
		outstanding: make(map[string]struct{}),
		callIDs:     make(map[string]struct{}),
	}
	empty := make([]Turn, 0, 16)
	c.turns.Store(&empty)
	return c
}

// Restore rebuilds a conversation from previously persisted turns,
// validating the sequencing of every turn.
func Restore(turns []Turn) (*Conversation, error) {
	c := New()
	for _, t := range turns {
		if err := c.Append(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Append adds a turn to the end of the conversation. It fails with
// INVALID_TURN_ORDER if the turn would break role sequencing, in which
// case the conversation is left unchanged.
func (c *Conversation) Append(turn Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := *c.turns.Load()
	if err := c.validate(cur, turn); err != nil {
		return err
	}

	t := turn.clone()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	switch t.Role {
	case RoleAssistant:
		for _, call := range t.ToolCalls {
			c.outstanding[call.ID] = struct{}{}
			c.callIDs[call.ID] = struct{}{}
		}
	case RoleTool:
		delete(c.outstanding, t.Result.ID)
	}

	next := append(cur, t)
	c.turns.Store(&next)
	return nil
}

func (c *Conversation) validate(cur []Turn, turn Turn) error {
	invalid := func(format string, args ...any) error {
		return apperrors.Newf(apperrors.ErrCodeInvalidTurnOrder, format, args...)
	}

	var last *Turn
	if len(cur) > 0 {
		last = &cur[len(cur)-1]
	}

	switch turn.Role {
	case RoleUser:
		if turn.Result != nil || len(turn.ToolCalls) > 0 {
			return invalid("user turn cannot carry tool payloads")
		}
		if len(c.outstanding) > 0 {
			return invalid("user turn appended while %d tool call(s) await results", len(c.outstanding))
		}
	case RoleAssistant:
		if last == nil {
			return invalid("conversation must start with a user turn")
		}
		if last.Role == RoleAssistant {
			return invalid("assistant turn cannot follow another assistant turn")
		}
		if len(c.outstanding) > 0 {
			return invalid("assistant turn appended while %d tool call(s) await results", len(c.outstanding))
		}
		if turn.Result != nil {
			return invalid("assistant turn cannot carry a tool result")
		}
		seen := make(map[string]struct{}, len(turn.ToolCalls))
		for _, call := range turn.ToolCalls {
			if call.ID == "" {
				return invalid("tool call %q has no id", call.Name)
			}
			if call.Name == "" {
				return invalid("tool call %s has no name", call.ID)
			}
			if _, dup := seen[call.ID]; dup {
				return invalid("tool call id %s repeated within one turn", call.ID)
			}
			if _, used := c.callIDs[call.ID]; used {
				return invalid("tool call id %s already used in this conversation", call.ID)
			}
			seen[call.ID] = struct{}{}
		}
	case RoleTool:
		if turn.Result == nil {
			return invalid("tool turn requires a result")
		}
		if len(turn.ToolCalls) > 0 {
			return invalid("tool turn cannot request tool calls")
		}
		if _, ok := c.outstanding[turn.Result.ID]; !ok {
			return invalid("tool result %s does not answer an outstanding request", turn.Result.ID)
		}
	default:
		return invalid("unknown role %q", turn.Role)
	}
	return nil
}

// Snapshot returns an immutable view of the conversation as of now.
func (c *Conversation) Snapshot() Snapshot {
	return Snapshot{turns: *c.turns.Load()}
}

// Len returns the number of turns
func (c *Conversation) Len() int {
	return len(*c.turns.Load())
}

// Outstanding returns the ids of tool calls that still await a result.
func (c *Conversation) Outstanding() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.outstanding))
	for _, t := range *c.turns.Load() {
		for _, call := range t.ToolCalls {
			if _, ok := c.outstanding[call.ID]; ok {
				ids = append(ids, call.ID)
			}
		}
	}
	return ids
}

// Fork returns an independent conversation seeded with the current turns.
// Appends to the fork never affect the receiver.
func (c *Conversation) Fork() *Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := *c.turns.Load()
	turns := make([]Turn, len(cur), len(cur)+16)
	copy(turns, cur)

	f := &Conversation{
		outstanding: make(map[string]struct{}, len(c.outstanding)),
		callIDs:     make(map[string]struct{}, len(c.callIDs)),
	}
	for id := range c.outstanding {
		f.outstanding[id] = struct{}{}
	}
	for id := range c.callIDs {
		f.callIDs[id] = struct{}{}
	}
	f.turns.Store(&turns)
	return f
}

// Snapshot is an immutable, independently iterable copy of a conversation.
type Snapshot struct {
	turns []Turn
}

// Len returns the number of turns in the snapshot
func (s Snapshot) Len() int {
	return len(s.turns)
}

// At returns a copy of the i-th turn
func (s Snapshot) At(i int) Turn {
	return s.turns[i].clone()
}

// Turns returns a copy of all turns
func (s Snapshot) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = t.clone()
	}
	return out
}

// Since returns copies of the turns at index n and later.
func (s Snapshot) Since(n int) []Turn {
	if n >= len(s.turns) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]Turn, 0, len(s.turns)-n)
	for _, t := range s.turns[n:] {
		out = append(out, t.clone())
	}
	return out
}

// All iterates over the turns in chronological order
func (s Snapshot) All() iter.Seq2[int, Turn] {
	return func(yield func(int, Turn) bool) {
		for i, t := range s.turns {
			if !yield(i, t.clone()) {
				return
			}
		}
	}
}

// Last returns the last turn, if any
func (s Snapshot) Last() (Turn, bool) {
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1].clone(), true
}
