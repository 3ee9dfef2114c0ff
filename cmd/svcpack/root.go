// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/svcpack/svcpack/internal/config"
	"github.com/svcpack/svcpack/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// NewRootCommand builds the svcpack command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Package and run an ASGI web service as a container image",
		Long: TitleStyle.Render("svcpack") + SubtitleStyle.Render(" - package and run an ASGI web service") + `

svcpack turns a service directory (sources, a dependency manifest and an
env file, described by svcpack.cue) into a container image with a pinned
base, CA trust installed first, dependencies installed without a cache and
uvicorn serving the app on all interfaces. It then runs that image in the
foreground with the service port published.

` + SubtitleStyle.Render("Quick Start:") + `
  1. svcpack init --name uploads     Write svcpack.cue
  2. svcpack validate                Check descriptor, manifest and port
  3. svcpack run                     Build (cached) and start the service`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().StringVarP(&app.flags.dir, "dir", "C", ".", "service directory containing svcpack.cue")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/svcpack/config.cue)")
	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")

	rootCmd.AddCommand(
		newInitCommand(app),
		newValidateCommand(app),
		newPlanCommand(app),
		newRenderCommand(app),
		newBuildCommand(app),
		newRunCommand(app),
		newConfigCommand(app),
	)

	return rootCmd
}

// Main runs the CLI with os.Args and returns the process exit code.
func Main() int {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return int(exitErr.Code)
		}
		return 1
	}
	return 0
}

// Execute runs the CLI and exits. It is called by main.main().
func Execute() {
	os.Exit(Main())
}

// handleError prints a failed command's error, falling back to fang's
// default rendering for errors renderError does not handle.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	if !a.renderError(w, err) {
		fang.DefaultErrorHandler(w, styles, err)
	}
}

// renderError prints catalog-backed errors as help text followed by the
// actionable message, and actionable errors with their suggestions. A bare ExitError prints nothing because the service
// process already reported its own failure. It reports whether err was handled.
func (a *App) renderError(w io.Writer, err error) bool {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return true
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		renderServiceError(w, svcErr)
		fmt.Fprintf(w, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(svcErr.Err, a.flags.verbose))
		return true
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), ae.Format(a.flags.verbose))
		return true
	}
	return false
}
