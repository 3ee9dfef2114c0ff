// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/svcpack/svcpack/internal/pipeline"

	"github.com/spf13/cobra"
)

// ErrInvalidOutputFormat is returned for -o values other than text, yaml and json.
var ErrInvalidOutputFormat = errors.New("invalid output format")

func newPlanCommand(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "plan [dir]",
		Short: "Show the ordered build steps and their layer keys",
		Long: `Show the build plan: base, trust, dependencies, assembly, network and
entrypoint steps in the order they are applied, with the facts each step
requires and provides, its layer key and the Containerfile instructions it
contributes. Nothing is built.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			write, err := reportWriter(output)
			if err != nil {
				return err
			}
			plan, planned, err := app.prepare(app.projectDir(args))
			if err != nil {
				return err
			}
			return write(pipeline.NewReport(plan, planned), app.stdout)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, yaml or json")

	return cmd
}

func reportWriter(format string) (func(*pipeline.Report, io.Writer) error, error) {
	switch format {
	case "text":
		return (*pipeline.Report).WriteText, nil
	case "yaml":
		return (*pipeline.Report).WriteYAML, nil
	case "json":
		return (*pipeline.Report).WriteJSON, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: text, yaml, json)", ErrInvalidOutputFormat, format)
	}
}

func newRenderCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "render [dir]",
		Short: "Print the generated Containerfile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, planned, err := app.prepare(app.projectDir(args))
			if err != nil {
				return err
			}
			_, err = io.WriteString(app.stdout, pipeline.Containerfile(planned.Snapshot))
			return err
		},
	}
}
