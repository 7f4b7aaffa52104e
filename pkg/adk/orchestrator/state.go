package orchestrator

import "fmt"

// State is a turn loop state
type State string

const (
	StateIdle           State = "idle"
	StateRequesting     State = "requesting"
	StateStreaming      State = "streaming"
	StateExecutingTools State = "executing_tools"
	StateCompleted      State = "completed"
	StateCancelled      State = "cancelled"
	StateFailed         State = "failed"
)

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:           {StateRequesting, StateCancelled},
	StateRequesting:     {StateStreaming, StateCancelled, StateFailed},
	StateStreaming:      {StateRequesting, StateExecutingTools, StateCompleted, StateCancelled, StateFailed},
	StateExecutingTools: {StateRequesting, StateCancelled, StateFailed},
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// machine holds the current state of one run. An illegal move is a
// programming error and panics.
type machine struct {
	state    State
	onChange func(from, to State)
}

func (m *machine) to(next State) {
	if !CanTransition(m.state, next) {
		panic(fmt.Sprintf("orchestrator: illegal transition %s -> %s", m.state, next))
	}
	from := m.state
	m.state = next
	if m.onChange != nil {
		m.onChange(from, next)
	}
}
