// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpCompatible   Operator = "~="
	OpArbitrary    Operator = "==="
)

var (
	// ErrInvalidRequirement is returned for lines that are not a requirement specifier.
	ErrInvalidRequirement = errors.New("invalid requirement")

	// operators is ordered longest first so prefix matching picks "===" over "==".
	operators = []Operator{OpArbitrary, OpEqual, OpNotEqual, OpGreaterEqual, OpLessEqual, OpCompatible, OpGreater, OpLess}

	nameRegex      = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*(?:\[([^\]]*)\])?`)
	normalizeRegex = regexp.MustCompile(`[-_.]+`)
)

type (
	// Operator is a PEP 440 comparison operator.
	Operator string

	// Specifier is one operator/version clause, e.g. ">=2.0".
	Specifier struct {
		Op      Operator
		Version string
	}

	// Requirement is a single declared dependency.
	Requirement struct {
		// Name is the package name as written.
		Name string
		// Extras are the optional feature sets in brackets.
		Extras []string
		// Specifiers are the version clauses; empty means "any version".
		Specifiers []Specifier
		// URL is set for direct references ("name @ https://...").
		URL string
		// Marker is the environment marker after ';', kept verbatim.
		Marker string
		// Hashes are --hash values attached to the requirement.
		Hashes []string
		// Line is the 1-based source line, 0 for pyproject entries.
		Line int
	}
)

// String renders the specifier as written in a requirements file.
func (s Specifier) String() string { return string(s.Op) + s.Version }

// NormalizedName returns the PEP 503 normalized package name.
func (r Requirement) NormalizedName() string {
	return strings.ToLower(normalizeRegex.ReplaceAllString(r.Name, "-"))
}

// IsPinned reports whether the requirement selects exactly one artifact:
// a single == or === clause without wildcard, or a direct URL reference.
func (r Requirement) IsPinned() bool {
	if r.URL != "" {
		return true
	}
	for _, s := range r.Specifiers {
		if (s.Op == OpEqual || s.Op == OpArbitrary) && !strings.HasSuffix(s.Version, ".*") {
			return true
		}
	}
	return false
}

// String renders the requirement in canonical requirements.txt form.
func (r Requirement) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	if len(r.Extras) > 0 {
		sb.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	if r.URL != "" {
		sb.WriteString(" @ " + r.URL)
	} else if len(r.Specifiers) > 0 {
		specs := make([]string, len(r.Specifiers))
		for i, s := range r.Specifiers {
			specs[i] = s.String()
		}
		sb.WriteString(strings.Join(specs, ","))
	}
	if r.Marker != "" {
		if r.URL != "" {
			sb.WriteString(" ")
		}
		sb.WriteString("; " + r.Marker)
	}
	for _, h := range r.Hashes {
		sb.WriteString(" --hash=" + h)
	}
	return sb.String()
}

// ParseRequirement parses a single PEP 508 requirement specifier
// ("uvicorn[standard]>=0.30,<1; python_version >= '3.9'").
func ParseRequirement(s string) (Requirement, error) {
	var req Requirement

	body, marker, _ := strings.Cut(s, ";")
	req.Marker = strings.TrimSpace(marker)
	body = strings.TrimSpace(body)

	m := nameRegex.FindStringSubmatch(body)
	if m == nil {
		return req, fmt.Errorf("%w: %q: missing package name", ErrInvalidRequirement, s)
	}
	req.Name = m[1]
	if m[2] != "" {
		for extra := range strings.SplitSeq(m[2], ",") {
			if e := strings.TrimSpace(extra); e != "" {
				req.Extras = append(req.Extras, e)
			}
		}
	}

	rest := strings.TrimSpace(body[len(m[0]):])
	if url, ok := strings.CutPrefix(rest, "@"); ok {
		req.URL = strings.TrimSpace(url)
		if req.URL == "" {
			return req, fmt.Errorf("%w: %q: empty direct reference", ErrInvalidRequirement, s)
		}
		return req, nil
	}

	rest = strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
	if strings.TrimSpace(rest) == "" {
		return req, nil
	}

	for clause := range strings.SplitSeq(rest, ",") {
		spec, err := parseSpecifier(strings.TrimSpace(clause))
		if err != nil {
			return req, fmt.Errorf("%w: %q: %w", ErrInvalidRequirement, s, err)
		}
		req.Specifiers = append(req.Specifiers, spec)
	}
	return req, nil
}

func parseSpecifier(clause string) (Specifier, error) {
	idx := slices.IndexFunc(operators, func(op Operator) bool {
		return strings.HasPrefix(clause, string(op))
	})
	if idx < 0 {
		return Specifier{}, fmt.Errorf("unknown operator in %q", clause)
	}
	op := operators[idx]
	version := strings.TrimSpace(strings.TrimPrefix(clause, string(op)))
	if version == "" {
		return Specifier{}, fmt.Errorf("missing version after %q", op)
	}
	if op != OpArbitrary {
		check := strings.TrimSuffix(version, ".*")
		if _, err := ParseVersion(check); err != nil {
			return Specifier{}, err
		}
		if strings.HasSuffix(version, ".*") && op != OpEqual && op != OpNotEqual {
			return Specifier{}, fmt.Errorf("wildcard only allowed with == and != in %q", clause)
		}
	}
	return Specifier{Op: op, Version: version}, nil
}
