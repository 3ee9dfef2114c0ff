// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"strings"
)

type (
	// bound is one end of the interval a constraint set allows.
	bound struct {
		version   Version
		inclusive bool
		set       bool
	}

	// interval is the range of versions still allowed after intersecting
	// every clause of a requirement.
	interval struct {
		lower, upper bound
		exact        *Version
		arbitrary    string
		excluded     []Version
		excludedPre  []Version
	}
)

// checkSatisfiable intersects the specifiers of a requirement and returns an
// error naming the clauses when no version can satisfy all of them.
// Pre-release and local-version subtleties are ignored: the check only has to
// catch contradictions a human would call obvious (">=2,<1", "==1.0,!=1.0").
func checkSatisfiable(specs []Specifier) error {
	var iv interval

	for _, s := range specs {
		if s.Op == OpArbitrary {
			if iv.arbitrary != "" && iv.arbitrary != s.Version {
				return conflict(specs)
			}
			iv.arbitrary = s.Version
			continue
		}

		if base, ok := strings.CutSuffix(s.Version, ".*"); ok {
			v, err := ParseVersion(base)
			if err != nil {
				return err
			}
			switch s.Op {
			case OpEqual:
				iv.raiseLower(v, true)
				iv.dropUpper(v.bumpPrefix(len(v.Release)), false)
			case OpNotEqual:
				iv.excludedPre = append(iv.excludedPre, v)
			}
			continue
		}

		v, err := ParseVersion(s.Version)
		if err != nil {
			return err
		}

		switch s.Op {
		case OpEqual:
			if iv.exact != nil && iv.exact.Compare(v) != 0 {
				return conflict(specs)
			}
			iv.exact = &v
		case OpNotEqual:
			iv.excluded = append(iv.excluded, v)
		case OpGreaterEqual:
			iv.raiseLower(v, true)
		case OpGreater:
			iv.raiseLower(v, false)
		case OpLessEqual:
			iv.dropUpper(v, true)
		case OpLess:
			iv.dropUpper(v, false)
		case OpCompatible:
			if len(v.Release) < 2 {
				return fmt.Errorf("~=%s needs at least two release segments", s.Version)
			}
			iv.raiseLower(v, true)
			iv.dropUpper(v.bumpPrefix(len(v.Release)-1), false)
		}
	}

	if !iv.nonEmpty() {
		return conflict(specs)
	}
	return nil
}

func (iv *interval) raiseLower(v Version, inclusive bool) {
	if !iv.lower.set {
		iv.lower = bound{version: v, inclusive: inclusive, set: true}
		return
	}
	switch c := v.Compare(iv.lower.version); {
	case c > 0:
		iv.lower = bound{version: v, inclusive: inclusive, set: true}
	case c == 0 && !inclusive:
		iv.lower.inclusive = false
	}
}

func (iv *interval) dropUpper(v Version, inclusive bool) {
	if !iv.upper.set {
		iv.upper = bound{version: v, inclusive: inclusive, set: true}
		return
	}
	switch c := v.Compare(iv.upper.version); {
	case c < 0:
		iv.upper = bound{version: v, inclusive: inclusive, set: true}
	case c == 0 && !inclusive:
		iv.upper.inclusive = false
	}
}

func (iv *interval) contains(v Version) bool {
	if iv.lower.set {
		c := v.Compare(iv.lower.version)
		if c < 0 || (c == 0 && !iv.lower.inclusive) {
			return false
		}
	}
	if iv.upper.set {
		c := v.Compare(iv.upper.version)
		if c > 0 || (c == 0 && !iv.upper.inclusive) {
			return false
		}
	}
	return true
}

func (iv *interval) nonEmpty() bool {
	if iv.exact != nil {
		if !iv.contains(*iv.exact) {
			return false
		}
		for _, ex := range iv.excluded {
			if ex.Compare(*iv.exact) == 0 {
				return false
			}
		}
		// Wildcard exclusions only matter against an exact pin.
		for _, pre := range iv.excludedPre {
			if hasPrefix(*iv.exact, pre) {
				return false
			}
		}
		return true
	}
	if iv.lower.set && iv.upper.set {
		c := iv.lower.version.Compare(iv.upper.version)
		if c > 0 {
			return false
		}
		if c == 0 {
			if !iv.lower.inclusive || !iv.upper.inclusive {
				return false
			}
			for _, ex := range iv.excluded {
				if ex.Compare(iv.lower.version) == 0 {
					return false
				}
			}
		}
	}
	return true
}

func hasPrefix(v, prefix Version) bool {
	if v.Epoch != prefix.Epoch {
		return false
	}
	for i, p := range prefix.Release {
		if segment(v.Release, i) != p {
			return false
		}
	}
	return true
}

func conflict(specs []Specifier) error {
	parts := make([]string, len(specs))
	for i, s := range specs {
		parts[i] = s.String()
	}
	return fmt.Errorf("%w: %s", ErrUnsatisfiable, strings.Join(parts, ","))
}
