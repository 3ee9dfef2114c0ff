// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
)

// ErrMissingPrerequisite is returned when a step is applied to a snapshot
// lacking one of its required facts, or when no step in a plan provides it.
var ErrMissingPrerequisite = errors.New("missing prerequisite")

type (
	// Step is one pure transformation of the image filesystem.
	Step interface {
		// Name identifies the step in plans, keys and reports.
		Name() string
		// Requires lists the facts that must hold before Apply.
		Requires() []Fact
		// Provides is the fact Apply establishes.
		Provides() Fact
		// Apply returns the next snapshot. It never mutates s.
		Apply(s Snapshot) (Snapshot, error)
	}

	// StepError wraps a failure of a single step.
	StepError struct {
		Step string
		Err  error
	}
)

func (e *StepError) Error() string { return fmt.Sprintf("step %s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

// checkRequires fails when s lacks any fact st requires.
func checkRequires(st Step, s Snapshot) error {
	for _, f := range st.Requires() {
		if !s.Has(f) {
			return &StepError{Step: st.Name(), Err: fmt.Errorf("%w: %s", ErrMissingPrerequisite, f)}
		}
	}
	if s.Inputs() == nil || s.Inputs().Descriptor == nil {
		return &StepError{Step: st.Name(), Err: errors.New("snapshot has no inputs")}
	}
	return nil
}
