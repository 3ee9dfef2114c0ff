// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/svcpack/svcpack/internal/container"
	"github.com/svcpack/svcpack/internal/core/serverbase"
	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/pkg/descriptor"
	"github.com/svcpack/svcpack/pkg/types"
)

const (
	// LabelService marks containers started by svcpack.
	LabelService = "io.svcpack.service"

	removeTimeout = 30 * time.Second
)

var (
	// ErrPortInUse is returned when the host port is already bound.
	ErrPortInUse = errors.New("port already in use")

	// ErrInvalidLaunchRequest is returned when a LaunchRequest lacks an image or descriptor.
	ErrInvalidLaunchRequest = errors.New("invalid launch request")
)

type (
	// LaunchRequest describes one service process.
	LaunchRequest struct {
		Descriptor *descriptor.Descriptor
		// Image is the built image tag.
		Image string
		// HostIP restricts the published port; empty publishes on all interfaces.
		HostIP string
		// HostPort is the host side of the mapping; zero uses the declared port.
		HostPort types.ListenPort
		// Env is added to the runtime env file values and overrides them.
		Env map[string]string

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
	}

	// PortInUseError names the address that could not be bound.
	PortInUseError struct {
		Addr string
		Err  error
	}

	// Option configures a Launcher.
	Option func(*Launcher)

	// Launcher runs one service process. It is single-use: a process that
	// has ended is never restarted.
	Launcher struct {
		*serverbase.Base

		engine      container.Engine
		logger      *log.Logger
		stopTimeout time.Duration
		newID       func() string
		name        string
	}
)

func (e *PortInUseError) Error() string {
	return fmt.Sprintf("port %s is already in use: %v", e.Addr, e.Err)
}

// Unwrap returns ErrPortInUse and the bind error.
func (e *PortInUseError) Unwrap() []error { return []error{ErrPortInUse, e.Err} }

// WithLogger sets the launcher logger.
func WithLogger(l *log.Logger) Option {
	return func(ln *Launcher) {
		if l != nil {
			ln.logger = l
		}
	}
}

// WithStopTimeout sets how long the process gets to exit after an interrupt.
func WithStopTimeout(d time.Duration) Option {
	return func(ln *Launcher) { ln.stopTimeout = d }
}

// NewLauncher creates a Launcher that runs images with engine.
func NewLauncher(engine container.Engine, opts ...Option) *Launcher {
	l := &Launcher{
		engine:      engine,
		logger:      log.New(io.Discard),
		stopTimeout: container.DefaultStopTimeout,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.Base = serverbase.NewBase(serverbase.WithTransitionHook(func(from, to serverbase.State) {
		l.logger.Debug("process state", "from", from, "to", to)
	}))
	return l
}

// ContainerName returns the container name chosen by Start.
func (l *Launcher) ContainerName() string { return l.name }

// Start checks the host port and launches the process in the background.
// An occupied port fails the launch before the engine is used; there is no
// fallback port. Wait returns the exit status of the process.
func (l *Launcher) Start(ctx context.Context, req LaunchRequest) error {
	if err := l.BeginStart(ctx); err != nil {
		return err
	}

	opts, err := l.runOptions(req)
	if err != nil {
		l.Fail(err)
		return err
	}

	if err := preflight(opts.Ports[0]); err != nil {
		err = portInUseError(err, opts.Ports[0])
		l.Fail(err)
		return err
	}

	l.name = opts.Name
	if err := l.MarkRunning(); err != nil {
		l.Fail(err)
		return err
	}
	l.logger.Info("starting service", "container", l.name, "image", opts.Image, "publish", opts.Ports[0].String())

	go func() {
		res, err := l.engine.Run(l.Context(), opts)
		if l.Context().Err() != nil {
			l.removeContainer()
		}
		if err != nil {
			l.Fail(err)
			return
		}
		runErr := res.Error
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
		l.logger.Info("service exited", "container", l.name, "exit_code", res.ExitCode)
		l.Finish(res.ExitCode, runErr)
	}()
	return nil
}

// removeContainer force-removes the container after an interrupt. The
// engine client can exit while a process that ignores the signal keeps
// running in the daemon and holding the port.
func (l *Launcher) removeContainer() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.Context()), removeTimeout)
	defer cancel()
	if err := l.engine.Remove(ctx, l.name, true); err != nil {
		l.logger.Debug("container not removed", "container", l.name, "error", err)
		return
	}
	l.logger.Debug("container removed", "container", l.name)
}

// Stop interrupts the process. It returns false when nothing was running.
func (l *Launcher) Stop() bool {
	return l.RequestStop()
}

// Run starts the process and waits for it to end. Cancelling ctx stops the
// process. The returned exit code is the process status, or 1 when the
// process could not be started.
func (l *Launcher) Run(ctx context.Context, req LaunchRequest) (types.ExitCode, error) {
	if err := l.Start(ctx, req); err != nil {
		return types.ExitFailure, err
	}
	select {
	case <-l.Done():
	case <-ctx.Done():
		l.Stop()
		<-l.Done()
	}
	return l.ExitCode(), l.LastError()
}

func (l *Launcher) runOptions(req LaunchRequest) (container.RunOptions, error) {
	d := req.Descriptor
	if d == nil || req.Image == "" {
		return container.RunOptions{}, fmt.Errorf("%w: descriptor and image are required", ErrInvalidLaunchRequest)
	}

	mapping := container.PortMapping{
		HostIP:        req.HostIP,
		HostPort:      req.HostPort.Or(d.Network.Port),
		ContainerPort: d.Network.Port,
		Protocol:      "tcp",
	}
	if err := mapping.Validate(); err != nil {
		return container.RunOptions{}, err
	}

	env, err := RuntimeEnv(d, req.Env)
	if err != nil {
		return container.RunOptions{}, err
	}

	return container.RunOptions{
		Image:       req.Image,
		Name:        ContainerName(d.Name, l.newID()),
		Remove:      true,
		Env:         env,
		Ports:       []container.PortMapping{mapping},
		Labels:      map[string]string{LabelService: d.Name},
		StopTimeout: l.stopTimeout,
		Stdin:       req.Stdin,
		Stdout:      req.Stdout,
		Stderr:      req.Stderr,
	}, nil
}

// ContainerName returns "svcpack-<service>-<first 8 chars of id>".
func ContainerName(service, id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "svcpack-" + service + "-" + id
}

// RuntimeEnv returns the variables passed with -e: the env file in runtime
// mode, then extra overriding it. A baked env file is already in the image
// and is not read.
func RuntimeEnv(d *descriptor.Descriptor, extra map[string]string) (map[string]string, error) {
	env := make(map[string]string, len(extra))
	if d.Artifacts.EnvFile != "" && d.Artifacts.EnvMode == descriptor.EnvRuntime {
		if err := LoadEnvFile(env, d.Artifacts.EnvFile, d.Dir()); err != nil {
			return nil, err
		}
	}
	for k, v := range extra {
		env[k] = v
	}
	return env, nil
}

// preflight binds the host side of the mapping and releases it at once.
func preflight(p container.PortMapping) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(p.HostIP, strconv.Itoa(int(p.HostPort))))
	if err != nil {
		return err
	}
	return ln.Close()
}

func portInUseError(cause error, p container.PortMapping) error {
	addr := net.JoinHostPort(p.HostIP, p.HostPort.String())
	return issue.NewErrorContext().
		WithOperation("publish service port").
		WithResource(addr).
		WithSuggestions(
			"Stop the process listening on "+addr,
			"Publish on another host port with --host-port",
		).
		Wrap(&PortInUseError{Addr: addr, Err: cause}).
		BuildError()
}
