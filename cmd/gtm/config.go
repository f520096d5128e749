// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gigantum/gtm/internal/config"
)

// newConfigCommand creates the `gtm config` command tree.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gtm configuration",
		Long: `Manage gtm configuration.

Configuration is read from the first of:
  - the file given with --config
  - Linux: ~/.config/gtm/gtm.yaml
  - macOS: ~/Library/Application Support/gtm/gtm.yaml
  - Windows: %APPDATA%\gtm\gtm.yaml
  - gtm.yaml in the current directory

Any key can be overridden with a GTM_ environment variable, e.g.
GTM_ENGINE_TYPE=podman, or in a .env file in the gtm root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, showConfig(cmd, app, flags))
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fail(cmd, app, flags, initConfig(app))
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return fail(cmd, app, flags, err)
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(cmd *cobra.Command, app *App, flags *rootFlags) error {
	cfg, err := app.loadConfig(cmd.Context(), flags)
	if err != nil {
		return err
	}

	rendered, err := config.Render(cfg)
	if err != nil {
		return err
	}

	source := SubtitleStyle.Render("(using defaults)")
	if cfg.SourceFile != "" {
		source = cfg.SourceFile
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)
	fmt.Fprintf(app.stdout, "%s: %s\n\n", keyStyle.Render("Config file"), source)
	fmt.Fprint(app.stdout, string(rendered))
	return nil
}

func initConfig(app *App) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	path, created, err := config.CreateDefaultConfig(dir)
	if err != nil {
		return err
	}

	if !created {
		fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("Config file already exists:"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Created config file:"), path)
	return nil
}
