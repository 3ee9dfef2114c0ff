// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/svcpack/svcpack/internal/issue"
	"github.com/svcpack/svcpack/pkg/descriptor"
	"github.com/svcpack/svcpack/pkg/types"

	"github.com/spf13/cobra"
)

// ErrDescriptorExists is returned by init when svcpack.cue is already present.
var ErrDescriptorExists = errors.New("descriptor already exists")

type initOptions struct {
	name  string
	app   string
	port  int
	force bool
}

func newInitCommand(app *App) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a svcpack.cue service descriptor",
		Long: `Create a svcpack.cue service descriptor with conventional defaults:
python:3.11-slim, CA certificates, requirements.txt, sources under app/,
the .env file baked into the image and uvicorn serving app.main:app on port 8000.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(app, app.projectDir(args), opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "service name (default: directory name)")
	cmd.Flags().StringVar(&opts.app, "app", "app.main:app", "ASGI application reference (module:attribute)")
	cmd.Flags().IntVar(&opts.port, "port", int(descriptor.DefaultPort), "port the service listens on")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing svcpack.cue")

	return cmd
}

func runInit(app *App, dir string, opts initOptions) error {
	path := filepath.Join(dir, descriptor.FileName)
	if _, err := os.Stat(path); err == nil && !opts.force {
		return issue.NewErrorContext().
			WithOperation("create service descriptor").
			WithResource(path).
			WithSuggestion("Pass --force to overwrite it").
			Wrap(ErrDescriptorExists).
			BuildError()
	}

	name := opts.name
	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		name = serviceName(filepath.Base(abs))
	}

	d := descriptor.Default(name)
	d.Entry.App = opts.app
	d.Network.Port = types.ListenPort(opts.port)

	content := descriptor.GenerateCUE(d)
	if _, err := descriptor.Parse([]byte(content), path); err != nil {
		return diagnose(err, issue.DescriptorInvalidId)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write descriptor: %w", err)
	}

	app.printf("%s Created %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

// serviceName lowercases s and replaces characters a descriptor name cannot
// hold with '-'.
func serviceName(s string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, s)
	name = strings.TrimLeft(name, "_.-")
	if name == "" {
		return "service"
	}
	return name
}
