package monitor

import (
	domain "github.com/oshokin/drowsiness-alarm/internal/domain/drowsiness"
)

// Transition is the externally visible effect of one observation.
type Transition int

const (
	// TransitionNone means the alarm did not change.
	TransitionNone Transition = iota
	// TransitionRaised is the rising edge into AlertActive.
	TransitionRaised
	// TransitionCleared means an open frame ended an active alarm.
	TransitionCleared
)

// String implements fmt.Stringer.
func (t Transition) String() string {
	switch t {
	case TransitionRaised:
		return "raised"
	case TransitionCleared:
		return "cleared"
	default:
		return "none"
	}
}

// Machine tracks the trailing run of closed-eye frames.
// It is owned by the frame loop and is not safe for concurrent use.
type Machine struct {
	// threshold is the run length that raises the alarm.
	threshold int
	// count is the length of the trailing run of closed frames.
	count int
	// state is the current alert state.
	state domain.AlertState
}

// NewMachine creates an idle machine raising at threshold consecutive closed frames.
func NewMachine(threshold int) *Machine {
	if threshold <= 0 {
		threshold = domain.DefaultClosedFramesThreshold
	}

	return &Machine{
		threshold: threshold,
		state:     domain.AlertIdle,
	}
}

// Observe feeds one frame classification and returns the resulting transition.
func (m *Machine) Observe(closed bool) Transition {
	if !closed {
		wasActive := m.state == domain.AlertActive

		m.count = 0
		m.state = domain.AlertIdle

		if wasActive {
			return TransitionCleared
		}

		return TransitionNone
	}

	m.count++

	switch {
	case m.state == domain.AlertActive:
		return TransitionNone
	case m.count >= m.threshold:
		m.state = domain.AlertActive

		return TransitionRaised
	default:
		m.state = domain.AlertClosing

		return TransitionNone
	}
}

// Reset returns the machine to idle.
func (m *Machine) Reset() {
	m.count = 0
	m.state = domain.AlertIdle
}

// Count returns the length of the trailing closed run.
func (m *Machine) Count() int {
	return m.count
}

// State returns the current alert state.
func (m *Machine) State() domain.AlertState {
	return m.state
}

// Threshold returns the run length that raises the alarm.
func (m *Machine) Threshold() int {
	return m.threshold
}
