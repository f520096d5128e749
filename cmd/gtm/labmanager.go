// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newLabManagerCommand creates the `gtm labmanager` command tree.
func newLabManagerCommand(app *App, flags *rootFlags) *cobra.Command {
	lmCmd := &cobra.Command{
		Use:   "labmanager",
		Short: "Build, run and test the LabManager image",
		Long: `Build, run and test the LabManager image.

The image and its container are named "labmanager-<commit>", using the first
8 characters of the gtm repository HEAD, unless --override-name is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	lmCmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Build the LabManager image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runLabManagerBuild(cmd, app, flags))
		},
	})

	lmCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the LabManager container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runLabManagerStart(cmd, app, flags))
		},
	})

	lmCmd.AddCommand(newStopCommand(app, flags, "Stop the LabManager container", func(s *session, cmd *cobra.Command) (string, error) {
		_, name, err := s.labManagerName(cmd.Context())
		return name.String(), err
	}))

	lmCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Run internal tests in the LabManager container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runLabManagerTest(cmd, app, flags))
		},
	})

	lmCmd.AddCommand(newPruneCommand(app, flags))

	return lmCmd
}

func runLabManagerBuild(cmd *cobra.Command, app *App, flags *rootFlags) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	builder, err := s.labManagerBuilder()
	if err != nil {
		return err
	}
	results, err := builder.Build(cmd.Context(), "", s.buildOptions())
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "\n*** Built LabManager Image: %s\n", TagStyle.Render(results[0].Tag.String()))
	return nil
}

func runLabManagerStart(cmd *cobra.Command, app *App, flags *rootFlags) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	tag, name, err := s.labManagerName(cmd.Context())
	if err != nil {
		return err
	}
	r, err := s.runner()
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(cmd.Context())
	defer cancel()
	if err := r.Start(ctx, tag, name); err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "*** Ran: %s\n", TagStyle.Render(tag.String()))
	return nil
}

func runLabManagerTest(cmd *cobra.Command, app *App, flags *rootFlags) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	_, name, err := s.labManagerName(cmd.Context())
	if err != nil {
		return err
	}
	return s.tester().Test(cmd.Context(), name)
}
