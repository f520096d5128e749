// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gigantum/gtm/internal/publish"
)

// newBaseImageCommand creates the `gtm baseimage` command tree.
func newBaseImageCommand(app *App, flags *rootFlags) *cobra.Command {
	biCmd := &cobra.Command{
		Use:   "baseimage",
		Short: "Build and publish base images",
		Long: `Build and publish base images.

Every directory under <resources_dir>/<baseimage.dir> is one base image, tagged
"<namespace>/<directory>:<commit>-<YYYY-MM-DD>". Built tags are recorded in the
tracking file and publish pushes them in build order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	biCmd.AddCommand(&cobra.Command{
		Use:   "build [image]",
		Short: "Build one base image, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runBaseImageBuild(cmd, app, flags, firstArg(args)))
		},
	})

	biCmd.AddCommand(&cobra.Command{
		Use:   "publish [tag]",
		Short: "Push one tracked image, or every tracked image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, runBaseImagePublish(cmd, app, flags, firstArg(args)))
		},
	})

	return biCmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runBaseImageBuild(cmd *cobra.Command, app *App, flags *rootFlags, target string) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.baseImageBuilder().Build(cmd.Context(), target, s.buildOptions())
	if len(results) == 0 {
		return err
	}
	built := 0
	for _, r := range results {
		if r.Err == nil {
			built++
		}
	}
	fmt.Fprintf(app.stdout, "\n*** Built %d of %d base image(s)\n", built, len(results))
	return err
}

func runBaseImagePublish(cmd *cobra.Command, app *App, flags *rootFlags, target string) error {
	s, err := app.newSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.Close()

	progress := &publishProgress{w: app.stdout, label: baseImageLabel}
	publisher := publish.NewPublisher(s.engine, s.tracker, s.logger, progress.start)

	tags, err := publisher.Publish(cmd.Context(), target, publish.Options{
		Verbose: flags.verbose,
		Output:  s.output(),
		Timeout: s.cfg.Engine.Timeout,
	})
	if err != nil {
		return err
	}
	progress.finish()

	fmt.Fprintf(app.stdout, "\n*** Published %d image(s)\n", len(tags))
	return nil
}
