// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/svcpack/svcpack/pkg/types"
)

const (
	// ContainerEnginePodman uses Podman to build and run images.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker to build and run images.
	ContainerEngineDocker ContainerEngine = "docker"

	// LogLevelDebug logs every step, cache decision and engine invocation.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs build and launch milestones.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs retries and recoverable problems only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs failures only.
	LogLevelError LogLevel = "error"

	// LogFormatText is the human-readable colored format.
	LogFormatText LogFormat = "text"
	// LogFormatJSON emits one JSON object per line.
	LogFormatJSON LogFormat = "json"
	// LogFormatLogfmt emits key=value pairs.
	LogFormatLogfmt LogFormat = "logfmt"

	maxBuildAttempts = 10
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is returned when a LogFormat value is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container engine builds and runs images.
	ContainerEngine string

	// LogLevel is the minimum level the CLI logger emits.
	LogLevel string

	// LogFormat selects the CLI logger's output formatter.
	LogFormat string

	// InvalidValueError reports an unrecognized enum value. It wraps the
	// matching sentinel (ErrInvalidContainerEngine, ErrInvalidLogLevel, ...).
	InvalidValueError struct {
		Field string
		Value string
		Valid []string
		Err   error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the svcpack configuration.
	Config struct {
		// ContainerEngine specifies whether to use "podman" or "docker".
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine"`
		// ImagePrefix is the repository prefix of built image tags (<prefix>/<service>:<key>).
		ImagePrefix string `json:"image_prefix" mapstructure:"image_prefix"`
		// Build configures image builds.
		Build BuildConfig `json:"build" mapstructure:"build"`
		// Run configures service launches.
		Run RunConfig `json:"run" mapstructure:"run"`
		// Log configures the CLI logger.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// BuildConfig configures image builds.
	BuildConfig struct {
		ForceRebuild bool `json:"force_rebuild" mapstructure:"force_rebuild"`
		NoCache      bool `json:"no_cache" mapstructure:"no_cache"`
		// KeepContext leaves the generated build context on disk for inspection.
		KeepContext bool `json:"keep_context" mapstructure:"keep_context"`
		MaxAttempts int  `json:"max_attempts" mapstructure:"max_attempts"`
	}

	// RunConfig configures service launches.
	RunConfig struct {
		// HostPort publishes the service on this host port; 0 uses the declared port.
		HostPort types.ListenPort `json:"host_port" mapstructure:"host_port"`
		// StopTimeout is how long an interrupted process may take to exit
		// before it is killed.
		StopTimeout time.Duration `json:"stop_timeout" mapstructure:"stop_timeout"`
	}

	// LogConfig configures the CLI logger.
	LogConfig struct {
		Level  LogLevel  `json:"level" mapstructure:"level"`
		Format LogFormat `json:"format" mapstructure:"format"`
	}
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEnginePodman,
		ImagePrefix:     "svcpack",
		Build: BuildConfig{
			MaxAttempts: 3,
		},
		Run: RunConfig{
			StopTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}

// Validate checks the engine name.
func (e ContainerEngine) Validate() error {
	switch e {
	case ContainerEnginePodman, ContainerEngineDocker:
		return nil
	default:
		return invalidValue("container_engine", string(e), ErrInvalidContainerEngine, ContainerEnginePodman, ContainerEngineDocker)
	}
}

// Validate checks the level name.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return invalidValue("log.level", string(l), ErrInvalidLogLevel, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)
	}
}

// Validate checks the format name.
func (f LogFormat) Validate() error {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return nil
	default:
		return invalidValue("log.format", string(f), ErrInvalidLogFormat, LogFormatText, LogFormatJSON, LogFormatLogfmt)
	}
}

// Validate collects every field error. Values loaded through the CUE schema
// already satisfy these rules; Validate guards values set by environment
// variables and by callers constructing a Config directly.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ContainerEngine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.ImagePrefix) == "" {
		errs = append(errs, errors.New("image_prefix: must not be empty"))
	}
	if c.Build.MaxAttempts < 1 || c.Build.MaxAttempts > maxBuildAttempts {
		errs = append(errs, fmt.Errorf("build.max_attempts: %d out of range 1-%d", c.Build.MaxAttempts, maxBuildAttempts))
	}
	if c.Run.HostPort.IsSet() {
		if err := c.Run.HostPort.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("run.host_port: %w", err))
		}
	}
	if c.Run.StopTimeout < 0 {
		errs = append(errs, fmt.Errorf("run.stop_timeout: negative duration %s", c.Run.StopTimeout))
	}
	if err := c.Log.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Log.Format.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

func invalidValue[T ~string](field, value string, sentinel error, valid ...T) error {
	names := make([]string, len(valid))
	for i, v := range valid {
		names[i] = string(v)
	}
	return &InvalidValueError{Field: field, Value: value, Valid: names, Err: sentinel}
}

// Error implements the error interface for InvalidValueError.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %q (valid: %s)", e.Field, e.Value, strings.Join(e.Valid, ", "))
}

// Unwrap returns the field's sentinel error.
func (e *InvalidValueError) Unwrap() error { return e.Err }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors so errors.Is
// matches both the config sentinel and the field sentinels.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
