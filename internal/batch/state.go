package batch

import (
	"fmt"
	"slices"
)

// State is the lifecycle state of a batch task.
type State string

const (
	StatePending         State = "pending"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"
)

var transitions = map[State][]State{
	StatePending: {StateRunning, StateCancelled, StateFailed},
	StateRunning: {StateCompleted, StatePartiallyFailed, StateFailed, StateCancelled},
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateRunning, StateCompleted, StatePartiallyFailed, StateFailed, StateCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s is final.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StatePartiallyFailed, StateFailed, StateCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a task in s may move to next.
func (s State) CanTransition(next State) bool {
	return slices.Contains(transitions[s], next)
}

func (s State) transition(next State) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return nil
}

// ExitCode maps a terminal state to the CLI exit status.
func (s State) ExitCode() int {
	switch s {
	case StateCompleted:
		return 0
	case StatePartiallyFailed:
		return 2
	case StateCancelled:
		return 3
	default:
		return 1
	}
}
