// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultImagePrefix is the repository prefix of built images.
	DefaultImagePrefix = "svcpack"
	// DefaultMaxAttempts bounds engine builds when failures are transient.
	DefaultMaxAttempts = 3
	// DefaultBackoff is the wait before the second attempt; it doubles after.
	DefaultBackoff = 2 * time.Second
)

type (
	// Config holds the build settings of a Builder.
	Config struct {
		// ImagePrefix is the repository prefix: <prefix>/<name>:<key>.
		ImagePrefix string

		// Tag overrides the content-addressed tag. An explicit tag is
		// always rebuilt since its name says nothing about its content.
		Tag string

		// ForceRebuild builds even when the tag already exists.
		ForceRebuild bool

		// NoCache disables the engine layer cache as well.
		NoCache bool

		// MaxAttempts bounds engine builds on transient failures.
		MaxAttempts int

		// Backoff is the wait before the second attempt.
		Backoff time.Duration

		// KeepContext leaves the build context on disk for inspection.
		KeepContext bool

		// ContextParent is where build contexts are created. Empty picks a
		// visible directory under $HOME (see contextParent).
		ContextParent string

		// Stdout and Stderr receive engine build output.
		Stdout io.Writer
		Stderr io.Writer

		Logger *log.Logger
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// DefaultConfig returns a Config with default values. Build output goes to
// stderr so stdout stays free for the image tag.
func DefaultConfig() *Config {
	return &Config{
		ImagePrefix: DefaultImagePrefix,
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
		Stdout:      os.Stderr,
		Stderr:      os.Stderr,
		Logger:      log.New(io.Discard),
	}
}

// WithImagePrefix sets the repository prefix.
func WithImagePrefix(prefix string) Option {
	return func(c *Config) {
		if prefix != "" {
			c.ImagePrefix = prefix
		}
	}
}

// WithTag sets an explicit image tag.
func WithTag(tag string) Option {
	return func(c *Config) { c.Tag = tag }
}

// WithForceRebuild returns an Option that sets ForceRebuild on the config.
func WithForceRebuild(force bool) Option {
	return func(c *Config) { c.ForceRebuild = force }
}

// WithNoCache disables the engine layer cache.
func WithNoCache(noCache bool) Option {
	return func(c *Config) { c.NoCache = noCache }
}

// WithMaxAttempts sets the attempt bound; values below 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithBackoff sets the initial retry wait.
func WithBackoff(d time.Duration) Option {
	return func(c *Config) { c.Backoff = d }
}

// WithKeepContext keeps the build context directory after the build.
func WithKeepContext(keep bool) Option {
	return func(c *Config) { c.KeepContext = keep }
}

// WithContextParent sets the directory build contexts are created in.
func WithContextParent(dir string) Option {
	return func(c *Config) { c.ContextParent = dir }
}

// WithOutput sets where engine build output goes. Nil discards it.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *Config) {
		c.Stdout = stdout
		c.Stderr = stderr
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
