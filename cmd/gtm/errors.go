// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gigantum/gtm/internal/build"
	"github.com/gigantum/gtm/internal/config"
	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/issue"
	"github.com/gigantum/gtm/internal/labconfig"
	"github.com/gigantum/gtm/internal/naming"
	"github.com/gigantum/gtm/internal/publish"
	"github.com/gigantum/gtm/internal/runner"
	"github.com/gigantum/gtm/internal/tester"
	"github.com/gigantum/gtm/internal/tracker"
	"github.com/gigantum/gtm/internal/vcs"
)

// classifyError maps a command failure to an issue catalog entry. Zero means
// the error needs no further help text.
func classifyError(err error) issue.Id {
	var (
		engineErr   *container.EngineError
		frontendErr *build.FrontendError
	)

	switch {
	case errors.Is(err, build.ErrUserAborted):
		return 0
	case errors.Is(err, container.ErrEngineNotAvailable), errors.Is(err, container.ErrInvalidEngineType):
		return issue.ContainerEngineNotFoundId
	case errors.Is(err, config.ErrConfigNotFound), errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId
	case errors.Is(err, naming.ErrFormat):
		return issue.InvalidNameId
	case errors.Is(err, vcs.ErrMetadataUnavailable):
		return issue.CommitUnavailableId
	case errors.Is(err, build.ErrTargetNotFound), errors.Is(err, build.ErrNoTargets):
		return issue.BuildTargetNotFoundId
	case errors.Is(err, labconfig.ErrMerge):
		return issue.LabConfigMergeFailedId
	case errors.Is(err, publish.ErrNoLocalBuilds):
		return issue.NoLocalBuildsId
	case errors.Is(err, tracker.ErrCorruptState):
		return issue.TrackingFileCorruptId
	case errors.Is(err, runner.ErrAlreadyRunning):
		return issue.ContainerAlreadyRunningId
	case errors.Is(err, runner.ErrNotRunning):
		return issue.ContainerNotRunningId
	case errors.Is(err, tester.ErrContainerNotFound), errors.Is(err, runner.ErrAmbiguousState):
		return issue.ContainerNotFoundId
	case errors.Is(err, tester.ErrTestFailure):
		return issue.TestsFailedId
	case errors.As(err, &frontendErr):
		return issue.BuildFailedId
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId
	case errors.As(err, &engineErr):
		return classifyEngineError(engineErr)
	case errors.Is(err, tracker.ErrNotFound):
		return issue.NoLocalBuildsId
	}
	return 0
}

// classifyEngineError picks the issue from the failure signature first and
// falls back to the failed operation.
func classifyEngineError(err *container.EngineError) issue.Id {
	switch container.ClassifyFailure(err) {
	case container.FailureCanceled:
		return 0
	case container.FailureDaemonUnreachable:
		return issue.DaemonUnreachableId
	case container.FailurePermissionDenied:
		return issue.PermissionDeniedId
	case container.FailureAuth:
		return issue.PushFailedId
	}

	switch err.Operation {
	case "build":
		return issue.BuildFailedId
	case "push":
		return issue.PushFailedId
	}
	return 0
}

// formatErrorForDisplay formats an error for user display.
// ActionableErrors use their own Format; in verbose mode it includes the full chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// renderError writes the error line and, when verbose, the matching catalog entry.
func renderError(w io.Writer, err error, verbose bool) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	id := classifyError(err)
	if !verbose || id == 0 {
		return
	}
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render("dark")
	if renderErr != nil {
		fmt.Fprintf(w, "%s could not render help for issue %d: %v\n", WarningStyle.Render("Warning:"), id, renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// fail renders err and returns a silent ExitError so fang does not print it again.
func fail(cmd *cobra.Command, app *App, flags *rootFlags, err error) error {
	if err == nil {
		return nil
	}
	renderError(app.stderr, err, flags.verbose)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return &ExitError{Code: 1, Err: err}
}
