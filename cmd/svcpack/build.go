// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/svcpack/svcpack/internal/config"
	"github.com/svcpack/svcpack/internal/container"
	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/internal/pipeline"
	"github.com/svcpack/svcpack/internal/provision"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type buildFlags struct {
	force       bool
	tag         string
	noCache     bool
	keepContext bool
}

func newBuildCommand(app *App) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Build the service image",
		Long: `Build the service image. The image is tagged <prefix>/<name>:<key>, where
the key covers everything that goes into the image, so an unchanged service
reuses the existing image without calling the engine's build. The dependency
layer is keyed on the manifest alone and survives source edits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			logger := app.newLogger(cfg)

			_, planned, err := app.prepare(app.projectDir(args))
			if err != nil {
				return err
			}
			engine, err := app.engine(cfg, logger)
			if err != nil {
				return err
			}

			res, err := buildImage(cmd.Context(), app, engine, cfg, logger, planned, flags)
			if err != nil {
				return err
			}
			if res.ContextDir != "" {
				app.printf("%s build context kept at %s\n", SubtitleStyle.Render("•"), res.ContextDir)
			}
			app.printf("%s\n", res.ImageTag)
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.force, "force", false, "rebuild even when the image already exists")
	cmd.Flags().StringVar(&flags.tag, "tag", "", "tag the image with this name instead of the content key (always rebuilds)")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the engine layer cache")
	cmd.Flags().BoolVar(&flags.keepContext, "keep-context", false, "keep the generated build context directory")

	return cmd
}

// buildImage builds planned with the configured builder. Flags override the
// build section of the configuration only when set.
func buildImage(
	ctx context.Context,
	app *App,
	engine container.Engine,
	cfg *config.Config,
	logger *log.Logger,
	planned *pipeline.Result,
	flags buildFlags,
) (*provision.Result, error) {
	var extra []provision.Option
	if flags.force {
		extra = append(extra, provision.WithForceRebuild(true))
	}
	if flags.noCache {
		extra = append(extra, provision.WithNoCache(true))
	}
	if flags.keepContext {
		extra = append(extra, provision.WithKeepContext(true))
	}
	if flags.tag != "" {
		extra = append(extra, provision.WithTag(flags.tag))
	}

	builder := provision.NewBuilder(engine, app.builderOptions(cfg, logger, extra...)...)
	res, err := builder.Build(ctx, planned)
	if err != nil {
		return nil, diagnose(err, issue.BuildFailedId)
	}
	return res, nil
}
