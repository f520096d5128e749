// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newDeveloperCommand creates the `gtm developer` command tree.
func newDeveloperCommand(app *App, flags *rootFlags) *cobra.Command {
	devCmd := &cobra.Command{
		Use:   "developer",
		Short: "Build and run the LabManager developer image",
		Long: `Build and run the LabManager developer image.

Builds are tagged "<developer.image>:<commit>" and "<developer.image>:latest";
start always runs the latest tag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	devCmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Build the developer image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runDeveloperBuild(cmd, app, flags))
		},
	})

	devCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the developer container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runDeveloperStart(cmd, app, flags))
		},
	})

	devCmd.AddCommand(newStopCommand(app, flags, "Stop the developer container", func(s *session, _ *cobra.Command) (string, error) {
		name, err := s.developerContainer()
		return name.String(), err
	}))

	devCmd.AddCommand(newPruneCommand(app, flags))

	return devCmd
}

func runDeveloperBuild(cmd *cobra.Command, app *App, flags *rootFlags) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	builder, err := s.developerBuilder()
	if err != nil {
		return err
	}
	results, err := builder.Build(cmd.Context(), "", s.buildOptions())
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "\n*** Built Developer Image: %s\n", TagStyle.Render(results[0].Tag.String()))
	return nil
}

func runDeveloperStart(cmd *cobra.Command, app *App, flags *rootFlags) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	image, err := s.developerLatest()
	if err != nil {
		return err
	}
	name, err := s.developerContainer()
	if err != nil {
		return err
	}
	r, err := s.runner()
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(cmd.Context())
	defer cancel()
	if err := r.Start(ctx, image, name); err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "*** Ran: %s as %s\n", TagStyle.Render(image.String()), TagStyle.Render(name.String()))
	return nil
}
