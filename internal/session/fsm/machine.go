package fsm

import (
	"fmt"
	"sync"
)

// State describes the lifecycle state of one dialogue session.
type State string

const (
	StateActive    State = "active"
	StateSuspended State = "suspended"
	StateEnded     State = "ended"
)

// Machine is a lightweight deterministic session state machine. A session is
// active while handlers may act on it, suspended while a dialogue waits for
// the user's next turn, and ended once terminated. Ended is terminal.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// New creates a state machine in the active state.
func New() *Machine {
	return &Machine{state: StateActive}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// OnSuspend marks the session waiting for the user's next turn.
func (m *Machine) OnSuspend() error {
	return m.transition(StateActive, StateSuspended)
}

// OnResume moves a suspended session back to active.
func (m *Machine) OnResume() error {
	return m.transition(StateSuspended, StateActive)
}

// OnEnd terminates the session from any state. Ending twice is a no-op.
func (m *Machine) OnEnd() {
	m.mu.Lock()
	m.state = StateEnded
	m.mu.Unlock()
}

func (m *Machine) transition(from State, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return fmt.Errorf("invalid transition to %s from %s", to, m.state)
	}
	m.state = to
	return nil
}
