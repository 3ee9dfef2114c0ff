// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"

	"github.com/opencontainers/go-digest"

	"github.com/svcpack/svcpack/internal/pipeline"
)

type (
	// Provisioner builds the image of a planned service.
	Provisioner interface {
		// Build builds (or reuses) the image for the plan result.
		Build(ctx context.Context, planned *pipeline.Result) (*Result, error)
	}

	// Result is the outcome of a build.
	Result struct {
		// ImageTag is the tag the image is available under.
		ImageTag string
		// ImageKey is the content key of the final layer.
		ImageKey digest.Digest
		// Cached is true when an existing image was reused.
		Cached bool
		// Attempts is the number of engine builds run (0 when cached).
		Attempts int
		// ContextDir is the kept build context; empty unless KeepContext is set.
		ContextDir string
	}
)
