package benchmark

import (
	"fmt"
	"time"
)

// State is a RunOrchestrator lifecycle stage.
type State string

const (
	StateIdle             State = "Idle"
	StateGeneratingCorpus State = "GeneratingCorpus"
	StateMeasuring        State = "Measuring"
	StateAggregating      State = "Aggregating"
	StatePersisting       State = "Persisting"
	StateCleaningUp       State = "CleaningUp"
	StateDone             State = "Done"
	StateFailed           State = "Failed"
)

// Measuring returns to GeneratingCorpus once per (profile, size) group.
var transitions = map[State][]State{
	StateIdle:             {StateGeneratingCorpus},
	StateGeneratingCorpus: {StateMeasuring},
	StateMeasuring:        {StateGeneratingCorpus, StateAggregating},
	StateAggregating:      {StatePersisting},
	StatePersisting:       {StateCleaningUp},
	StateCleaningUp:       {StateDone},
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether to may follow s. Failed is reachable from
// every non-terminal state.
func (s State) CanTransition(to State) bool {
	if s.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

type stateMachine struct {
	current  State
	history  []Transition
	onChange func(Transition)
}

func newStateMachine(onChange func(Transition)) *stateMachine {
	return &stateMachine{current: StateIdle, onChange: onChange}
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) transition(to State) error {
	if !m.current.CanTransition(to) {
		return fmt.Errorf("illegal state transition %s -> %s", m.current, to)
	}

	t := Transition{From: m.current, To: to, At: time.Now()}
	m.current = to
	m.history = append(m.history, t)
	if m.onChange != nil {
		m.onChange(t)
	}
	return nil
}

func (m *stateMachine) History() []Transition {
	return append([]Transition(nil), m.history...)
}
