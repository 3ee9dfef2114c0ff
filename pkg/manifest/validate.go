// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRequirement is returned when a package is declared twice.
	ErrDuplicateRequirement = errors.New("duplicate requirement")
	// ErrUnsatisfiable is returned when no version satisfies a requirement's clauses.
	ErrUnsatisfiable = errors.New("unsatisfiable constraint")
	// ErrUnpinned is returned in strict mode for requirements without an exact pin.
	ErrUnpinned = errors.New("requirement is not pinned")
)

// RequirementError locates a validation failure inside the manifest.
type RequirementError struct {
	Path string
	Line int
	Name string
	Err  error
}

func (e *RequirementError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %v", e.Path, e.Line, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Name, e.Err)
}

func (e *RequirementError) Unwrap() error { return e.Err }

// Validate checks that every requirement can be installed. Duplicates (after
// name normalization) and contradictory clauses are always errors; with
// requirePinned every requirement must select exactly one version. The same
// name may repeat under distinct environment markers. All problems are reported together.
func (m *Manifest) Validate(requirePinned bool) error {
	var errs []error
	seen := make(map[string][]int, len(m.Requirements))

	for i, r := range m.Requirements {
		fail := func(err error) {
			errs = append(errs, &RequirementError{Path: m.Path, Line: r.Line, Name: r.Name, Err: err})
		}

		name := r.NormalizedName()
		for _, prev := range seen[name] {
			if overlaps(m.Requirements[prev], r) {
				fail(fmt.Errorf("%w: also declared as %q", ErrDuplicateRequirement, m.Requirements[prev].Name))
				break
			}
		}
		seen[name] = append(seen[name], i)

		if err := checkSatisfiable(r.Specifiers); err != nil {
			fail(err)
		}

		if requirePinned && !r.IsPinned() {
			fail(ErrUnpinned)
		}
	}
	return errors.Join(errs...)
}

// overlaps reports whether two requirements on the same name can apply to the
// same interpreter. An unmarked requirement applies everywhere.
func overlaps(a, b Requirement) bool {
	return a.Marker == "" || b.Marker == "" || a.Marker == b.Marker
}
