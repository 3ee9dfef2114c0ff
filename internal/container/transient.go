// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// networkFailures are messages printed by apt, pip and the engines when the
// network, not the build, is at fault.
var networkFailures = []string{
	"Temporary failure resolving",
	"Could not resolve host",
	"connection timed out",
	"connection refused",
	"TLS handshake timeout",
	"Read timed out",
	"toomanyrequests",
	"i/o timeout",
}

// IsTransientError reports whether a failed build may succeed when retried:
// registry or index network failures while pulling the base image or
// installing packages, storage driver races and generic engine errors
// (exit code 125). Cancellation is never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Exit code 125 is a generic container engine error (e.g., Podman/Docker
	// internal failure). These are often transient storage or cgroup issues.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 125 {
		return true
	}

	errStr := err.Error()

	// Rootless Podman race conditions and OCI runtime errors.
	if strings.Contains(errStr, "ping_group_range") ||
		strings.Contains(errStr, "OCI runtime error") {
		return true
	}

	for _, s := range networkFailures {
		if strings.Contains(errStr, s) {
			return true
		}
	}

	// Storage driver errors (overlay mount races on rootless Podman).
	if strings.Contains(errStr, "error creating overlay mount") ||
		strings.Contains(errStr, "error mounting layer") {
		return true
	}

	return false
}
