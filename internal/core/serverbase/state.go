// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

const (
	// StateCreated means Start has not been called.
	StateCreated State = iota
	// StateStarting covers preflight checks and process launch.
	StateStarting
	// StateRunning means the process was launched and has not exited.
	StateRunning
	// StateStopping means a stop was requested and the process is shutting down.
	StateStopping
	// StateStopped is terminal: the process exited cleanly or was stopped on request.
	StateStopped
	// StateFailed is terminal: the process could not start or exited non-zero.
	StateFailed
)

var (
	// ErrInvalidState is returned when a State value is not one of the defined lifecycle states.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition is returned when a lifecycle step is attempted from the wrong state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

type (
	// State is the lifecycle state of a service process.
	State int32

	// InvalidStateError is returned when a State value is not recognized.
	InvalidStateError struct {
		Value State
	}

	// TransitionError reports a lifecycle step attempted from the wrong state.
	TransitionError struct {
		From State
		To   State
	}
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Error implements the error interface for InvalidStateError.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=created, 1=starting, 2=running, 3=stopping, 4=stopped, 5=failed)", e.Value)
}

// Unwrap returns ErrInvalidState for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s", e.From, e.To)
}

// Unwrap returns ErrInvalidTransition for errors.Is() compatibility.
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Validate returns nil if the State is one of the defined lifecycle states.
func (s State) Validate() error {
	switch s {
	case StateCreated, StateStarting, StateRunning, StateStopping, StateStopped, StateFailed:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTerminal returns true for Stopped and Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// Terminal states have no successors.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateCreated:
		return next == StateStarting || next == StateStopped || next == StateFailed
	case StateStarting:
		return next == StateRunning || next == StateStopping || next == StateStopped || next == StateFailed
	case StateRunning:
		return next == StateStopping || next == StateStopped || next == StateFailed
	case StateStopping:
		return next == StateStopped || next == StateFailed
	default:
		return false
	}
}
