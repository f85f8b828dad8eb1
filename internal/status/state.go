package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/koichat/internal/bus"
)

// State represents a conversation lifetime state.
type State string

const (
	Idle          State = "IDLE"
	Bootstrapping State = "BOOTSTRAPPING"
	Active        State = "ACTIVE"
	TornDown      State = "TORN_DOWN"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Idle:          {Bootstrapping},
	Bootstrapping: {Active, TornDown},
	Active:        {TornDown},
	TornDown:      {Idle},
}

// Machine tracks and enforces conversation lifetime transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	m.set(to)
	return nil
}

// Teardown walks the machine back to Idle from wherever it is, emitting
// TornDown on the way when a lifetime was open.
func (m *Machine) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.current {
	case Idle:
		return
	case Bootstrapping, Active:
		m.set(TornDown)
	}
	m.set(Idle)
}

func (m *Machine) set(to State) {
	from := m.current
	m.current = to
	m.bus.Emit(bus.KindStateChanged, StatusChange{From: from, To: to})
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
