// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

var (
	// ErrPortMismatch is returned when the entry command would listen on a
	// port other than the declared one.
	ErrPortMismatch = errors.New("entry port does not match declared port")
	// ErrNotAllInterfaces is returned when the entry host is not a wildcard address.
	ErrNotAllInterfaces = errors.New("entry host must bind all interfaces")
	// ErrInvalidEntryReference is returned for app references not shaped "module:object".
	ErrInvalidEntryReference = errors.New("invalid entry reference")
	// ErrReservedArg is returned when extra args try to override host or port.
	ErrReservedArg = errors.New("reserved entry argument")
	// ErrCacheEnabled is returned when the installer cache is turned on.
	ErrCacheEnabled = errors.New("dependency installer cache must be disabled")
	// ErrUnsafePath is returned for artifact paths that leave the project or workdir.
	ErrUnsafePath = errors.New("path escapes its root")
	// ErrUnprintablePath is returned for paths holding whitespace or control
	// characters, which Containerfile instructions cannot carry verbatim.
	ErrUnprintablePath = errors.New("path contains whitespace or control characters")
	// ErrNoTrustPackages is returned when the trust step would install nothing.
	ErrNoTrustPackages = errors.New("no CA trust packages listed")

	entryRefRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*:[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*$`)

	allInterfaces = []string{"0.0.0.0", "::"}
)

// FieldError ties a validation failure to a descriptor field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }

func (e *FieldError) Unwrap() error { return e.Err }

// Validate checks the rules the schema does not express. All failures are
// returned together.
func (d *Descriptor) Validate() error {
	var errs []error
	add := func(field string, err error) {
		if err != nil {
			errs = append(errs, &FieldError{Field: field, Err: err})
		}
	}

	if d.Name == "" {
		add("name", errors.New("must not be empty"))
	}
	add("image", d.Image.Validate())
	add("workdir", d.WorkDir.Validate())

	if len(d.Trust.Packages) == 0 {
		add("trust.packages", ErrNoTrustPackages)
	}

	if !d.Dependencies.NoCache {
		add("dependencies.no_cache", ErrCacheEnabled)
	}
	add("dependencies.manifest", relativePath(d.Dependencies.Manifest))

	for i, c := range d.Artifacts.Sources {
		add(fmt.Sprintf("artifacts.sources[%d].src", i), relativePath(c.Src))
		add(fmt.Sprintf("artifacts.sources[%d].dst", i), containedPath(c.Dst))
	}
	if d.Artifacts.EnvFile != "" {
		add("artifacts.env_file", relativePath(d.Artifacts.EnvFile))
	}
	for i, dir := range d.Artifacts.Directories {
		add(fmt.Sprintf("artifacts.directories[%d]", i), relativePath(dir))
	}

	add("network.port", d.Network.Port.ValidateDeclared())

	add("entry.app", validateEntryRef(d.Entry.App))
	if !slices.Contains(allInterfaces, d.Entry.Host) {
		add("entry.host", fmt.Errorf("%w: got %q", ErrNotAllInterfaces, d.Entry.Host))
	}
	if d.Entry.Port.IsSet() && d.Entry.Port != d.Network.Port {
		add("entry.port", fmt.Errorf("%w: entry %d, network %d", ErrPortMismatch, d.Entry.Port, d.Network.Port))
	}
	for i, arg := range d.Entry.Args {
		name, _, _ := strings.Cut(arg, "=")
		if name == "--host" || name == "--port" || name == "--uds" || name == "--fd" {
			add(fmt.Sprintf("entry.args[%d]", i), fmt.Errorf("%w: %s is fixed by the descriptor", ErrReservedArg, name))
		}
	}

	return errors.Join(errs...)
}

func validateEntryRef(ref string) error {
	if !entryRefRegex.MatchString(ref) {
		return fmt.Errorf("%w: %q must look like \"package.module:object\"", ErrInvalidEntryReference, ref)
	}
	return nil
}

// relativePath requires a project-relative path that stays inside the project.
func relativePath(p string) error {
	if p == "" {
		return errors.New("must not be empty")
	}
	if err := printablePath(p); err != nil {
		return err
	}
	if path.IsAbs(p) {
		return fmt.Errorf("%w: %q must be relative to the project", ErrUnsafePath, p)
	}
	return containedPath(p)
}

// containedPath rejects paths that climb out with "..".
func containedPath(p string) error {
	if p == "" {
		return errors.New("must not be empty")
	}
	if err := printablePath(p); err != nil {
		return err
	}
	clean := path.Clean(strings.TrimPrefix(p, "./"))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	return nil
}

// printablePath rejects whitespace and control characters.
func printablePath(p string) error {
	if strings.IndexFunc(p, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return fmt.Errorf("%w: %q", ErrUnprintablePath, p)
	}
	return nil
}
