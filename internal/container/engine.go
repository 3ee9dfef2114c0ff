// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/svcpack/svcpack/pkg/types"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

var (
	// ErrEngineNotAvailable is wrapped by EngineNotAvailableError.
	ErrEngineNotAvailable = errors.New("container engine not available")

	// ErrInvalidEngineType is returned for engine names other than docker and podman.
	ErrInvalidEngineType = errors.New("invalid container engine type")

	// ErrInvalidBuildOptions is returned when BuildOptions lack a context or tag.
	ErrInvalidBuildOptions = errors.New("invalid build options")

	// ErrInvalidRunOptions is returned when RunOptions lack an image.
	ErrInvalidRunOptions = errors.New("invalid run options")
)

type (
	// Engine is a container engine.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// Available reports whether the engine binary exists and answers.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)
		// Build builds and tags an image. A failed build leaves no tag behind.
		Build(ctx context.Context, opts BuildOptions) error
		// Run runs an image in the foreground until the process exits or ctx
		// is cancelled.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// Remove removes a container.
		Remove(ctx context.Context, name string, force bool) error
		// ImageExists reports whether the tag is present locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// RemoveImage removes an image.
		RemoveImage(ctx context.Context, image string, force bool) error
	}

	// EngineType identifies the container engine.
	EngineType string

	// BuildOptions describes one image build.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Containerfile is the build file, relative to ContextDir unless absolute.
		Containerfile string
		// Tag is the image tag to apply on success.
		Tag string
		// Labels are attached to the image.
		Labels map[string]string
		// NoCache disables the engine layer cache.
		NoCache bool
		// Pull always attempts to pull a newer base image.
		Pull   bool
		Stdout io.Writer
		Stderr io.Writer
	}

	// RunOptions describes a foreground container run.
	RunOptions struct {
		Image string
		// Command overrides the image CMD; empty keeps it.
		Command []string
		// Env is written to a private env file for the run so values never
		// appear on the engine command line.
		Env map[string]string
		// EnvFile is passed with --env-file.
		EnvFile string
		// Ports are published with -p.
		Ports []PortMapping
		// Remove deletes the container when it exits.
		Remove bool
		// Name is the container name.
		Name string
		// Labels are attached to the container.
		Labels map[string]string
		// StopTimeout is how long the engine client gets to stop the
		// container after an interrupt before it is killed.
		StopTimeout time.Duration

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// RunResult is the outcome of a run.
	RunResult struct {
		// Name is the container name.
		Name string
		// ExitCode is the exit status of the container process.
		ExitCode types.ExitCode
		// Error is set for infrastructure failures (binary missing, cancelled).
		Error error
	}

	// EngineNotAvailableError explains why no engine could be used.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

// String returns the engine type name.
func (t EngineType) String() string { return string(t) }

// Validate accepts docker and podman.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypeDocker, EngineTypePodman:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: docker, podman)", ErrInvalidEngineType, string(t))
	}
}

// Validate checks the required fields.
func (o BuildOptions) Validate() error {
	if o.ContextDir == "" {
		return fmt.Errorf("%w: context directory is required", ErrInvalidBuildOptions)
	}
	if o.Tag == "" {
		return fmt.Errorf("%w: tag is required", ErrInvalidBuildOptions)
	}
	return nil
}

// Validate checks the required fields and every port mapping.
func (o RunOptions) Validate() error {
	if o.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidRunOptions)
	}
	var errs []error
	for _, k := range slices.Sorted(maps.Keys(o.Env)) {
		if strings.ContainsAny(k, "=\n\r") || k == "" {
			errs = append(errs, fmt.Errorf("env name %q", k))
		}
		if strings.ContainsAny(o.Env[k], "\n\r") {
			errs = append(errs, fmt.Errorf("env %s: value spans lines", k))
		}
	}
	for _, p := range o.Ports {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRunOptions, errors.Join(errs...))
	}
	return nil
}

func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// NewEngine returns the preferred engine, falling back to the other one.
func NewEngine(preferred EngineType) (Engine, error) {
	if err := preferred.Validate(); err != nil {
		return nil, err
	}

	candidates := []Engine{NewPodmanEngine(), NewDockerEngine()}
	if preferred == EngineTypeDocker {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}
	for _, e := range candidates {
		if e.Available() {
			return e, nil
		}
	}
	return nil, &EngineNotAvailableError{
		Engine: preferred.String(),
		Reason: fmt.Sprintf("%s is not installed or not accessible, and %s fallback is also not available",
			candidates[0].Name(), candidates[1].Name()),
	}
}

// AutoDetectEngine returns the first available engine, Podman first.
func AutoDetectEngine() (Engine, error) {
	for _, e := range []Engine{NewPodmanEngine(), NewDockerEngine()} {
		if e.Available() {
			return e, nil
		}
	}
	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (podman or docker) is available on this system",
	}
}
