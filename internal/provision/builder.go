// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/svcpack/svcpack/internal/container"
	"github.com/svcpack/svcpack/internal/pipeline"
	"github.com/svcpack/svcpack/pkg/descriptor"
)

// Image labels set on every build.
const (
	LabelService = "io.svcpack.service"
	LabelKey     = "io.svcpack.key"
)

// Compile-time interface check
var _ Provisioner = (*Builder)(nil)

// Builder builds service images with a container engine.
type Builder struct {
	engine container.Engine
	config *Config
}

// NewBuilder creates a Builder. Options are applied over DefaultConfig.
func NewBuilder(engine container.Engine, opts ...Option) *Builder {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Builder{engine: engine, config: cfg}
}

// Config returns the builder's configuration.
func (b *Builder) Config() *Config {
	return b.config
}

// ImageTag returns the tag the planned image is built under.
func (b *Builder) ImageTag(planned *pipeline.Result) string {
	if b.config.Tag != "" {
		return b.config.Tag
	}
	name := planned.Snapshot.Inputs().Descriptor.Name
	return fmt.Sprintf("%s/%s:%s", strings.TrimSuffix(b.config.ImagePrefix, "/"), name, planned.ShortKey())
}

// BuildDescriptor plans d and builds the result. Planning failures (invalid
// manifest, missing artifacts) return before the engine is used.
func (b *Builder) BuildDescriptor(ctx context.Context, d *descriptor.Descriptor) (*Result, error) {
	_, planned, err := pipeline.Prepare(d)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, planned)
}

// Build builds the planned image, or reuses it when its content-addressed
// tag already exists. Transient engine failures are retried with backoff.
func (b *Builder) Build(ctx context.Context, planned *pipeline.Result) (*Result, error) {
	logger := b.config.Logger
	tag := b.ImageTag(planned)
	res := &Result{ImageTag: tag, ImageKey: planned.ImageKey}

	if !b.config.ForceRebuild && b.config.Tag == "" {
		exists, err := b.engine.ImageExists(ctx, tag)
		if err != nil {
			logger.Debug("image lookup failed, building", "tag", tag, "error", err)
		}
		if exists {
			logger.Info("image up to date", "tag", tag)
			res.Cached = true
			return res, nil
		}
	}

	parent := b.config.ContextParent
	if parent == "" {
		parent = contextParent()
	}
	dir, cleanup, err := PrepareContext(parent, planned)
	if err != nil {
		return nil, err
	}
	if b.config.KeepContext {
		res.ContextDir = dir
		logger.Info("build context kept", "dir", dir)
	} else {
		defer cleanup()
	}

	opts := container.BuildOptions{
		ContextDir:    dir,
		Containerfile: ContainerfileName,
		Tag:           tag,
		Labels: map[string]string{
			LabelService: planned.Snapshot.Inputs().Descriptor.Name,
			LabelKey:     planned.ImageKey.String(),
		},
		NoCache: b.config.NoCache,
		Stdout:  b.config.Stdout,
		Stderr:  b.config.Stderr,
	}

	err = container.RetryWithBackoff(ctx, b.config.MaxAttempts, b.config.Backoff, func(attempt int) (bool, error) {
		res.Attempts = attempt + 1
		logger.Info("building image", "tag", tag, "engine", b.engine.Name(), "attempt", res.Attempts)
		err := b.engine.Build(ctx, opts)
		retry := container.IsTransientError(err)
		if retry && res.Attempts < b.config.MaxAttempts {
			logger.Warn("transient build failure, retrying", "tag", tag, "error", err)
		}
		return retry, err
	})
	if err != nil {
		return nil, err
	}

	logger.Info("image built", "tag", tag, "key", planned.ShortKey())
	return res, nil
}
