// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/svcpack/svcpack/internal/config"
	"github.com/svcpack/svcpack/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `svcpack config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage svcpack configuration",
		Long: `Manage svcpack configuration.

Configuration is stored in:
  - Linux: $XDG_CONFIG_HOME/svcpack/config.cue (~/.config/svcpack/config.cue)
  - macOS: ~/Library/Application Support/svcpack/config.cue
  - Windows: %APPDATA%\svcpack\config.cue

SVCPACK_* environment variables override file values, for example
SVCPACK_CONTAINER_ENGINE=docker or SVCPACK_RUN_HOST_PORT=18000.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.LoadWithPath(cmd.Context(), app.loadOptions())
			if err != nil {
				return newServiceError(err, issue.ConfigLoadFailedId)
			}
			showConfig(app, cfg, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigFilePath(app.loadOptions())
			if err != nil {
				return err
			}
			app.printf("%s\n", path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigFilePath(app.loadOptions())
			if err != nil {
				return err
			}
			created, err := config.CreateDefaultConfig(path)
			if err != nil {
				return err
			}
			if created {
				app.printf("%s Created %s\n", SuccessStyle.Render("✓"), path)
			} else {
				app.printf("%s %s already exists\n", WarningStyle.Render("!"), path)
			}
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App, cfg *config.Config, path string) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	app.printf("%s\n\n", TitleStyle.Render("Current Configuration"))
	if path != "" {
		app.printf("%s: %s\n\n", keyStyle.Render("Config file"), path)
	} else {
		app.printf("%s: %s\n\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	value := func(v any) string { return valueStyle.Render(fmt.Sprint(v)) }

	app.printf("%s: %s\n", keyStyle.Render("container_engine"), value(cfg.ContainerEngine))
	app.printf("%s: %s\n", keyStyle.Render("image_prefix"), value(cfg.ImagePrefix))

	app.printf("\n%s:\n", keyStyle.Render("build"))
	app.printf("  force_rebuild: %s\n", value(cfg.Build.ForceRebuild))
	app.printf("  no_cache: %s\n", value(cfg.Build.NoCache))
	app.printf("  keep_context: %s\n", value(cfg.Build.KeepContext))
	app.printf("  max_attempts: %s\n", value(cfg.Build.MaxAttempts))

	app.printf("\n%s:\n", keyStyle.Render("run"))
	if cfg.Run.HostPort.IsSet() {
		app.printf("  host_port: %s\n", value(cfg.Run.HostPort))
	} else {
		app.printf("  host_port: %s\n", SubtitleStyle.Render("(declared port)"))
	}
	app.printf("  stop_timeout: %s\n", value(cfg.Run.StopTimeout))

	app.printf("\n%s:\n", keyStyle.Render("log"))
	app.printf("  level: %s\n", value(cfg.Log.Level))
	app.printf("  format: %s\n", value(cfg.Log.Format))
}
