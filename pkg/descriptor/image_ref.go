// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/opencontainers/go-digest"
)

var (
	// ErrInvalidImageRef is the sentinel error wrapped by InvalidImageRefError.
	ErrInvalidImageRef = errors.New("invalid image reference")

	// ErrFloatingImage is returned for base images without a fixed tag or digest.
	ErrFloatingImage = errors.New("base image is not pinned")

	// ErrInvalidWorkDir is returned for working directories that are not clean absolute paths.
	ErrInvalidWorkDir = errors.New("invalid working directory")
)

type (
	// ImageRef is a base image reference in "repo[:tag][@digest]" form.
	ImageRef string

	// InvalidImageRefError is returned when an ImageRef cannot be used as base image.
	// It wraps ErrInvalidImageRef, or ErrFloatingImage when only pinning is missing.
	InvalidImageRefError struct {
		Value  ImageRef
		Reason string
		err    error
	}

	// WorkDir is the absolute directory inside the image where the service lives.
	WorkDir string
)

// String returns the reference as written.
func (r ImageRef) String() string { return string(r) }

// Split returns the repository, tag and digest parts. Missing parts are empty.
func (r ImageRef) Split() (repo, tag string, dgst digest.Digest) {
	s := string(r)
	if before, after, ok := strings.Cut(s, "@"); ok {
		s, dgst = before, digest.Digest(after)
	}
	// A colon after the last slash is a tag; before it, a registry port.
	if i := strings.LastIndex(s, ":"); i > strings.LastIndex(s, "/") {
		return s[:i], s[i+1:], dgst
	}
	return s, "", dgst
}

// IsDigestPinned reports whether the reference carries a content digest.
func (r ImageRef) IsDigestPinned() bool {
	_, _, d := r.Split()
	return d != ""
}

// Validate returns nil when the reference resolves to a fixed image: either
// a digest, or an explicit tag other than "latest".
func (r ImageRef) Validate() error {
	if strings.TrimSpace(string(r)) == "" {
		return &InvalidImageRefError{Value: r, Reason: "must not be empty", err: ErrInvalidImageRef}
	}
	if printablePath(string(r)) != nil {
		return &InvalidImageRefError{Value: r, Reason: "must not contain whitespace or control characters", err: ErrInvalidImageRef}
	}

	repo, tag, dgst := r.Split()
	if repo == "" {
		return &InvalidImageRefError{Value: r, Reason: "missing repository", err: ErrInvalidImageRef}
	}
	if dgst != "" {
		if err := dgst.Validate(); err != nil {
			return &InvalidImageRefError{Value: r, Reason: err.Error(), err: ErrInvalidImageRef}
		}
		return nil
	}
	if tag == "" || tag == "latest" {
		return &InvalidImageRefError{
			Value:  r,
			Reason: "needs an explicit version tag or @sha256 digest",
			err:    ErrFloatingImage,
		}
	}
	return nil
}

// Error implements the error interface for InvalidImageRefError.
func (e *InvalidImageRefError) Error() string {
	return fmt.Sprintf("image %q: %s", e.Value, e.Reason)
}

// Unwrap returns the sentinel for errors.Is() compatibility.
func (e *InvalidImageRefError) Unwrap() error { return e.err }

// String returns the directory as written.
func (w WorkDir) String() string { return string(w) }

// Validate requires a clean absolute POSIX path.
func (w WorkDir) Validate() error {
	s := string(w)
	if err := printablePath(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkDir, err)
	}
	if !path.IsAbs(s) {
		return fmt.Errorf("%w: %q must be absolute", ErrInvalidWorkDir, s)
	}
	if path.Clean(s) != s {
		return fmt.Errorf("%w: %q is not clean (want %q)", ErrInvalidWorkDir, s, path.Clean(s))
	}
	return nil
}
