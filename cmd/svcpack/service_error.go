// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/svcpack/svcpack/internal/container"
	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/internal/pipeline"
	"github.com/svcpack/svcpack/internal/runtime"
	"github.com/svcpack/svcpack/pkg/descriptor"
	"github.com/svcpack/svcpack/pkg/manifest"

	"github.com/charmbracelet/x/term"
)

// ServiceError is an error that carries the issue catalog entry explaining it.
// Always create via newServiceError to enforce the Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// diagnose attaches the catalog entry matching err, or fallback when no
// more specific entry applies. Errors that already carry one are returned as is.
func diagnose(err error, fallback issue.Id) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	return newServiceError(err, classify(err, fallback))
}

func classify(err error, fallback issue.Id) issue.Id {
	var reqErr *manifest.RequirementError
	switch {
	case errors.Is(err, descriptor.ErrNotFound):
		return issue.DescriptorNotFoundId
	case errors.Is(err, container.ErrEngineNotAvailable):
		return issue.ContainerEngineNotFoundId
	case errors.Is(err, runtime.ErrPortInUse):
		return issue.PortInUseId
	case errors.As(err, &reqErr),
		errors.Is(err, manifest.ErrInvalidRequirement),
		errors.Is(err, manifest.ErrUnsupportedDirective),
		errors.Is(err, manifest.ErrNoProjectTable):
		return issue.ManifestInvalidId
	case errors.Is(err, pipeline.ErrMissingArtifact), errors.Is(err, fs.ErrNotExist):
		return issue.ArtifactMissingId
	default:
		return fallback
	}
}

// renderServiceError prints the catalog entry of svcErr, if any.
func renderServiceError(w io.Writer, svcErr *ServiceError) {
	if svcErr == nil || svcErr.IssueID == 0 {
		return
	}
	entry := issue.Get(svcErr.IssueID)
	if entry == nil {
		return
	}
	rendered, err := entry.Render(issueStyle(w))
	if err != nil {
		fmt.Fprintf(w, "%s %v\n", WarningStyle.Render("failed to render help:"), err)
		return
	}
	fmt.Fprint(w, rendered)
}

// issueStyle picks the glamour style: "dark" on a terminal, plain text otherwise.
func issueStyle(w io.Writer) string {
	if f, ok := w.(*os.File); ok && term.IsTerminal(f.Fd()) && os.Getenv("NO_COLOR") == "" {
		return "dark"
	}
	return "notty"
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
