// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/internal/provision"
	"github.com/svcpack/svcpack/internal/runtime"
	"github.com/svcpack/svcpack/pkg/types"

	"github.com/spf13/cobra"
)

var (
	// ErrImageNotBuilt is returned by run --no-build when the image is missing.
	ErrImageNotBuilt = errors.New("image not built")
	// ErrInvalidEnvFlag is returned for --env values without '='.
	ErrInvalidEnvFlag = errors.New("invalid --env value")
)

type runFlags struct {
	hostPort int
	hostIP   string
	env      []string
	noBuild  bool
	build    buildFlags
}

func newRunCommand(app *App) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Build the image if needed and run the service in the foreground",
		Long: `Build the image if needed and run the service in the foreground with its
port published. The host port must be free: svcpack checks it before the
container is created and fails at once when it is taken. Ctrl+C stops the
service. The service's exit code becomes svcpack's exit code.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd, app, app.projectDir(args), flags)
		},
	}

	cmd.Flags().IntVarP(&flags.hostPort, "host-port", "p", 0, "host port to publish on (default: config run.host_port, then the declared port)")
	cmd.Flags().StringVar(&flags.hostIP, "host-ip", "", "host address to publish on (default: all interfaces)")
	cmd.Flags().StringArrayVarP(&flags.env, "env", "e", nil, "extra environment variable KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&flags.noBuild, "no-build", false, "run the existing image; fail if it has not been built")
	cmd.Flags().BoolVar(&flags.build.force, "force", false, "rebuild the image before running")

	return cmd
}

func runService(cmd *cobra.Command, app *App, dir string, flags runFlags) error {
	ctx := cmd.Context()

	env, err := parseEnvFlags(flags.env)
	if err != nil {
		return err
	}

	cfg, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := app.newLogger(cfg)

	_, planned, err := app.prepare(dir)
	if err != nil {
		return err
	}
	engine, err := app.engine(cfg, logger)
	if err != nil {
		return err
	}

	var image string
	if flags.noBuild {
		builder := provision.NewBuilder(engine, app.builderOptions(cfg, logger)...)
		image = builder.ImageTag(planned)
		exists, err := engine.ImageExists(ctx, image)
		if err != nil || !exists {
			return issue.NewErrorContext().
				WithOperation("run service").
				WithResource(image).
				WithSuggestion("Run 'svcpack build' first, or drop --no-build").
				Wrap(fmt.Errorf("%w: %s", ErrImageNotBuilt, image)).
				BuildError()
		}
	} else {
		res, err := buildImage(ctx, app, engine, cfg, logger, planned, flags.build)
		if err != nil {
			return err
		}
		image = res.ImageTag
	}

	hostPort := cfg.Run.HostPort
	if cmd.Flags().Changed("host-port") {
		hostPort = types.ListenPort(flags.hostPort)
	}

	d := planned.Snapshot.Inputs().Descriptor
	launcher := runtime.NewLauncher(engine,
		runtime.WithLogger(logger),
		runtime.WithStopTimeout(cfg.Run.StopTimeout),
	)
	published := hostPort.Or(d.Network.Port)
	logger.Info("service url", "service", d.Name, "image", image,
		"url", "http://"+net.JoinHostPort(displayHost(flags.hostIP), published.String()))

	code, err := launcher.Run(ctx, runtime.LaunchRequest{
		Descriptor: d,
		Image:      image,
		HostIP:     flags.hostIP,
		HostPort:   hostPort,
		Env:        env,
		Stdout:     app.stdout,
		Stderr:     app.stderr,
	})
	if err != nil {
		if code = code.Normalize(); code.IsSuccess() {
			code = types.ExitFailure
		}
		return &ExitError{Code: code, Err: diagnose(err, 0)}
	}
	if !code.IsSuccess() {
		return &ExitError{Code: code}
	}
	return nil
}

func parseEnvFlags(values []string) (map[string]string, error) {
	env := make(map[string]string, len(values))
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q (want KEY=VALUE)", ErrInvalidEnvFlag, kv)
		}
		env[k] = v
	}
	return env, nil
}

func displayHost(hostIP string) string {
	if hostIP == "" {
		return "localhost"
	}
	return hostIP
}
