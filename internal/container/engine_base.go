// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"time"

	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/pkg/types"
)

// DefaultStopTimeout is how long an interrupted run may take to shut down.
const DefaultStopTimeout = 10 * time.Second

type (
	// ExecCommandFunc creates the exec.Cmd for an engine invocation.
	// Tests replace it to avoid running a real engine.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine holds what Docker and Podman share: argument building and
	// command execution. Engine-specific probes (Available, Version,
	// ImageExists) live on the concrete types.
	BaseCLIEngine struct {
		name        string
		binaryPath  string
		execCommand ExecCommandFunc
	}
)

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) { e.name = name }
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) { e.execCommand = fn }
}

// WithBinaryPath overrides the engine binary found on PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) { e.binaryPath = path }
}

// NewBaseCLIEngine creates a base engine for the binary at binaryPath.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:  binaryPath,
		execCommand: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BinaryPath returns the path to the engine binary, empty when not found.
func (e *BaseCLIEngine) BinaryPath() string { return e.binaryPath }

// BuildArgs returns the arguments of
//
//	<binary> build -f <file> -t <tag> [--label k=v]... [--no-cache] [--pull] <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Containerfile != "" {
		file := opts.Containerfile
		if !filepath.IsAbs(file) {
			file = filepath.Join(opts.ContextDir, file)
		}
		args = append(args, "-f", file)
	}
	args = append(args, "-t", opts.Tag)
	for _, k := range slices.Sorted(maps.Keys(opts.Labels)) {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if opts.Pull {
		args = append(args, "--pull")
	}
	return append(args, opts.ContextDir)
}

// RunArgs returns the arguments of
//
//	<binary> run [--rm] [--name n] [--label k=v]... [--env-file f] [-e k=v]... [-p spec]... <image> [command...]
//
// Env and labels are emitted in key order so the vector is reproducible. Run
// moves Env into an env file before building the vector.
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.Stdin != nil {
		args = append(args, "-i")
	}
	for _, k := range slices.Sorted(maps.Keys(opts.Labels)) {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}
	if opts.EnvFile != "" {
		args = append(args, "--env-file", opts.EnvFile)
	}
	for _, k := range slices.Sorted(maps.Keys(opts.Env)) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}
	for _, p := range opts.Ports {
		args = append(args, "-p", p.String())
	}

	args = append(args, opts.Image)
	return append(args, opts.Command...)
}

// RemoveArgs returns the arguments of a container removal.
func (e *BaseCLIEngine) RemoveArgs(name string, force bool) []string {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	return append(args, name)
}

// RemoveImageArgs returns the arguments of an image removal.
func (e *BaseCLIEngine) RemoveImageArgs(image string, force bool) []string {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	return append(args, image)
}

// CreateCommand creates an exec.Cmd for the engine binary.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// RunCommandStatus executes a command and returns only its error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return commandError(e.binaryPath, args, err, stderr.Bytes())
	}
	return nil
}

// RunCommandWithOutput executes a command and returns its stdout.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", commandError(e.binaryPath, args, err, stderr.Bytes())
	}
	return stdout.String(), nil
}

// Build builds and tags an image. Engine output streams to opts.Stdout and
// opts.Stderr; a copy of stderr is kept so the returned error can be
// classified as transient or not.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	cmd := e.CreateCommand(ctx, e.BuildArgs(opts)...)
	var tail bytes.Buffer
	cmd.Stdout = opts.Stdout
	cmd.Stderr = teeWriter(opts.Stderr, &tail)

	if err := cmd.Run(); err != nil {
		return buildContainerError(e.name, opts, commandError(e.binaryPath, []string{"build"}, err, tail.Bytes()))
	}
	return nil
}

// Run runs the image in the foreground. A non-zero exit of the container
// process is reported in RunResult.ExitCode, not as an error. Cancelling
// ctx interrupts the engine client, which forwards the signal to the
// container, and kills it after StopTimeout.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if len(opts.Env) > 0 {
		path, cleanup, err := writeEnvFile(opts.Env)
		if err != nil {
			return nil, runContainerError(e.name, opts, err)
		}
		defer cleanup()
		opts.EnvFile = path
		opts.Env = nil
	}

	cmd := e.CreateCommand(ctx, e.RunArgs(opts)...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = opts.StopTimeout
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultStopTimeout
	}

	result := &RunResult{Name: opts.Name}
	if err := cmd.Start(); err != nil {
		return nil, runContainerError(e.name, opts, err)
	}

	err := cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = types.ExitCode(exitErr.ExitCode()).Normalize()
		if ctx.Err() != nil {
			result.Error = ctx.Err()
		}
	} else if err != nil {
		result.ExitCode = types.ExitFailure
		result.Error = err
	}
	return result, nil
}

// writeEnvFile writes env as KEY=VALUE lines to a new 0600 temp file.
// cleanup deletes it.
func writeEnvFile(env map[string]string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "svcpack-env-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create env file: %w", err)
	}
	cleanup = func() { _ = os.Remove(f.Name()) }

	var buf bytes.Buffer
	for _, k := range slices.Sorted(maps.Keys(env)) {
		buf.WriteString(k + "=" + env[k] + "\n")
	}
	_, err = f.Write(buf.Bytes())
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write env file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// Remove removes a container.
func (e *BaseCLIEngine) Remove(ctx context.Context, name string, force bool) error {
	return e.RunCommandStatus(ctx, e.RemoveArgs(name, force)...)
}

// RemoveImage removes an image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image string, force bool) error {
	return e.RunCommandStatus(ctx, e.RemoveImageArgs(image, force)...)
}

// CommandError is a failed engine invocation with the tail of its stderr.
type CommandError struct {
	Binary string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %s %v failed: %v", filepath.Base(e.Binary), e.Args, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

const maxStderrTail = 2048

func commandError(binary string, args []string, err error, stderr []byte) error {
	tail := bytes.TrimSpace(stderr)
	if len(tail) > maxStderrTail {
		tail = tail[len(tail)-maxStderrTail:]
	}
	return &CommandError{Binary: binary, Args: args, Stderr: string(tail), Err: err}
}

// buildContainerError creates an actionable error for image build failures.
func buildContainerError(engine string, opts BuildOptions, cause error) error {
	return issue.NewErrorContext().
		WithOperation("build image").
		WithResource(opts.Tag).
		WithSuggestions(
			"Check the build output above for the failing step",
			"Ensure the base image is reachable (try: "+engine+" pull <base-image>)",
			"Run 'svcpack render' to inspect the generated Containerfile",
		).
		Wrap(cause).
		BuildError()
}

// runContainerError creates an actionable error for failures to start a run.
func runContainerError(engine string, opts RunOptions, cause error) error {
	return issue.NewErrorContext().
		WithOperation("run container").
		WithResource(opts.Image).
		WithSuggestions(
			"Verify the image exists (try: "+engine+" images)",
			"Ensure the published port does not conflict with running services",
		).
		Wrap(cause).
		BuildError()
}
