// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/svcpack/svcpack/internal/config"
	"github.com/svcpack/svcpack/internal/container"
	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/internal/pipeline"
	"github.com/svcpack/svcpack/internal/provision"
	"github.com/svcpack/svcpack/pkg/descriptor"

	"github.com/charmbracelet/log"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every Cobra handler receives an App and goes through it for
	// configuration, engines and output streams.
	App struct {
		Config    ConfigProvider
		NewEngine EngineFactory
		stdout    io.Writer
		stderr    io.Writer
		flags     rootFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config    ConfigProvider
		NewEngine EngineFactory
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// EngineFactory returns the container engine to build and run with.
	EngineFactory func(preferred config.ContainerEngine) (container.Engine, error)

	// rootFlags holds the persistent flags shared by every command.
	rootFlags struct {
		dir        string
		configPath string
		verbose    bool
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:    deps.Config,
		NewEngine: deps.NewEngine,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.NewEngine == nil {
		app.NewEngine = func(preferred config.ContainerEngine) (container.Engine, error) {
			return container.NewEngine(container.EngineType(preferred))
		}
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}

// loadConfig loads the user configuration named by --config or the default location.
func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, a.loadOptions())
	if err != nil {
		return nil, newServiceError(err, issue.ConfigLoadFailedId)
	}
	return cfg, nil
}

// newLogger builds the CLI logger from the log section of cfg. --verbose
// forces debug level.
func (a *App) newLogger(cfg *config.Config) *log.Logger {
	level, err := log.ParseLevel(string(cfg.Log.Level))
	if err != nil {
		level = log.InfoLevel
	}
	if a.flags.verbose {
		level = log.DebugLevel
	}

	formatter := log.TextFormatter
	switch cfg.Log.Format {
	case config.LogFormatJSON:
		formatter = log.JSONFormatter
	case config.LogFormatLogfmt:
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(a.stderr, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: formatter != log.TextFormatter,
		Prefix:          config.AppName,
	})
}

// projectDir returns the positional directory argument, or --dir.
func (a *App) projectDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.flags.dir
}

// loadDescriptor reads the service descriptor of dir.
func (a *App) loadDescriptor(dir string) (*descriptor.Descriptor, error) {
	d, err := descriptor.Load(dir)
	if err != nil {
		return nil, diagnose(err, issue.DescriptorInvalidId)
	}
	return d, nil
}

// prepare loads the descriptor of dir and runs the build plan over it. No
// engine is involved; every consistency check happens here.
func (a *App) prepare(dir string) (*pipeline.Plan, *pipeline.Result, error) {
	d, err := a.loadDescriptor(dir)
	if err != nil {
		return nil, nil, err
	}
	plan, planned, err := pipeline.Prepare(d)
	if err != nil {
		return nil, nil, diagnose(err, issue.DescriptorInvalidId)
	}
	return plan, planned, nil
}

// engine resolves the configured container engine.
func (a *App) engine(cfg *config.Config, logger *log.Logger) (container.Engine, error) {
	engine, err := a.NewEngine(cfg.ContainerEngine)
	if err != nil {
		return nil, diagnose(err, issue.ContainerEngineNotFoundId)
	}
	logger.Debug("container engine selected", "engine", engine.Name())
	return engine, nil
}

// builderOptions maps the build section of cfg onto provision options. Flag
// options passed in extra are applied last and win.
func (a *App) builderOptions(cfg *config.Config, logger *log.Logger, extra ...provision.Option) []provision.Option {
	opts := []provision.Option{
		provision.WithImagePrefix(cfg.ImagePrefix),
		provision.WithForceRebuild(cfg.Build.ForceRebuild),
		provision.WithNoCache(cfg.Build.NoCache),
		provision.WithKeepContext(cfg.Build.KeepContext),
		provision.WithMaxAttempts(cfg.Build.MaxAttempts),
		provision.WithOutput(a.stderr, a.stderr),
		provision.WithLogger(logger),
	}
	return append(opts, extra...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
