// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

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

// NewRootCommand builds the gtm command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "gtm",
		Short: "Developer command line tool for the Gigantum platform",
		Long: TitleStyle.Render("gtm") + SubtitleStyle.Render(" - Developer command line tool for the Gigantum platform") + `

gtm builds, publishes, starts, stops and tests the Docker images that make up
a Gigantum development environment.

` + SubtitleStyle.Render("Components:") + `
  labmanager   build, start, stop, test, prune
  developer    build, start, stop, prune
  baseimage    build, publish

` + SubtitleStyle.Render("Examples:") + `
  gtm labmanager build -v       Build the LabManager image, streaming output
  gtm labmanager start          Start the image built from the current commit
  gtm baseimage build r-tidyverse
  gtm baseimage publish
  gtm config show               Show the effective configuration`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "stream engine output and enable debug logging")
	pf.StringVar(&flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/gtm/gtm.yaml)")
	pf.StringVarP(&flags.overrideName, "override-name", "n", "", "use `name` as the image and container name")
	pf.BoolVar(&flags.noCache, "no-cache", false, "ignore the engine build cache")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "answer yes to rebuild prompts")

	rootCmd.AddCommand(
		newLabManagerCommand(app, flags),
		newDeveloperCommand(app, flags),
		newBaseImageCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the gtm command tree. This is called by main.main().
func Execute() {
	rootCmd := NewRootCommand(NewApp(Dependencies{}))

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
