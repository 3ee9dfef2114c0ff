// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"
)

func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check the descriptor, dependency manifest and port contract",
		Long: `Check the service without building it: the descriptor schema, a pinned
base image, a satisfiable dependency manifest, the presence of every source
tree and the env file, and that the exposed port equals the port uvicorn is
told to bind.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, planned, err := app.prepare(app.projectDir(args))
			if err != nil {
				return err
			}
			d := planned.Snapshot.Inputs().Descriptor
			app.printf("%s %s is valid (port %s, image key %s)\n",
				SuccessStyle.Render("✓"), CmdStyle.Render(d.Name), planned.Snapshot.ExposedPort(), planned.ShortKey())
			return nil
		},
	}
}
