// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/labconfig"
)

const (
	// DefaultUIBuilderImage is the image that compiles the labmanager frontend.
	DefaultUIBuilderImage = "gigantum/labmanager-ui-builder"
	// DefaultUIBuildMount is where the frontend builder writes compiled assets.
	DefaultUIBuildMount = "/opt/labmanager-ui/build"
)

type (
	// Hook runs before the engine build of a target. out receives progress
	// output and is io.Discard unless the build is verbose.
	Hook func(ctx context.Context, target Target, out io.Writer) error

	// FrontendOptions configures FrontendHook.
	FrontendOptions struct {
		// Image is the frontend builder image tag.
		Image string
		// ContextDir holds the frontend builder Dockerfile.
		ContextDir string
		// OutputDir receives the compiled frontend. It is created if missing.
		OutputDir string
		// MountPath is OutputDir's location inside the builder container.
		MountPath string
		// HostPath converts OutputDir into the form the engine expects. Nil keeps it as is.
		HostPath func(string) string
	}

	// FrontendError is returned when the frontend builder container exits non-zero.
	FrontendError struct {
		Image    string
		ExitCode int
	}
)

// Error implements the error interface.
func (e *FrontendError) Error() string {
	return fmt.Sprintf("frontend build in %s exited with code %d", e.Image, e.ExitCode)
}

// ConfigMergeHook writes the merged labmanager configuration before the build.
func ConfigMergeHook(paths labconfig.Paths) Hook {
	return func(ctx context.Context, _ Target, out io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Merging %s into %s\n", paths.Override, paths.Output)
		return labconfig.MergeAt(paths)
	}
}

// FrontendHook rebuilds the frontend builder image from scratch and runs it
// once to compile the UI into OutputDir.
func FrontendHook(engine container.Engine, opts FrontendOptions) Hook {
	if opts.Image == "" {
		opts.Image = DefaultUIBuilderImage
	}
	if opts.MountPath == "" {
		opts.MountPath = DefaultUIBuildMount
	}

	return func(ctx context.Context, _ Target, out io.Writer) error {
		exists, err := engine.ImageExists(ctx, opts.Image)
		if err != nil {
			return err
		}
		if exists {
			if err := engine.RemoveImage(ctx, opts.Image, true); err != nil {
				return err
			}
		}

		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create frontend output dir: %w", err)
		}

		_, _ = fmt.Fprintf(out, "\n*** Building frontend build image %s, please wait...\n\n", opts.Image)
		if err := engine.Build(ctx, container.BuildOptions{
			ContextDir: opts.ContextDir,
			Tag:        opts.Image,
			Pull:       true,
			Stdout:     out,
			Stderr:     out,
		}); err != nil {
			return err
		}

		hostDir := opts.OutputDir
		if opts.HostPath != nil {
			hostDir = opts.HostPath(hostDir)
		}

		_, _ = fmt.Fprint(out, "\n*** Compiling frontend...\n\n")
		result, err := engine.Run(ctx, container.RunOptions{
			Image:   opts.Image,
			Init:    true,
			Remove:  true,
			Volumes: []container.VolumeMount{{HostPath: hostDir, ContainerPath: opts.MountPath}},
			Stdout:  out,
			Stderr:  out,
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return &FrontendError{Image: opts.Image, ExitCode: result.ExitCode}
		}
		return nil
	}
}
