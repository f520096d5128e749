// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigantum/gtm/internal/naming"
)

// containerNameFunc resolves the container a stop command acts on.
type containerNameFunc func(s *session, cmd *cobra.Command) (string, error)

// newStopCommand creates a `stop` action with the --cleanup flag.
func newStopCommand(app *App, flags *rootFlags, short string, nameFor containerNameFunc) *cobra.Command {
	var cleanup bool

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runStop(cmd, app, flags, nameFor, cleanup))
		},
	}
	stopCmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove stopped containers after stopping")
	return stopCmd
}

func runStop(cmd *cobra.Command, app *App, flags *rootFlags, nameFor containerNameFunc, cleanup bool) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	raw, err := nameFor(s, cmd)
	if err != nil {
		return err
	}
	name, err := naming.NewContainerName(raw)
	if err != nil {
		return err
	}
	r, err := s.runner()
	if err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(cmd.Context())
	defer cancel()
	if err := r.Stop(ctx, name, cleanup); err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "*** Stopped: %s\n", TagStyle.Render(name.String()))
	return nil
}

// newPruneCommand creates a `prune` action that removes stopped containers.
func newPruneCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove all stopped containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runPrune(cmd, app, flags))
		},
	}
}

func runPrune(cmd *cobra.Command, app *App, flags *rootFlags) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.runner()
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(cmd.Context())
	defer cancel()
	if err := r.Prune(ctx); err != nil {
		return err
	}

	fmt.Fprintln(app.stdout, SuccessStyle.Render("*** Pruned stopped containers"))
	return nil
}
