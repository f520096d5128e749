// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
)

func TestClassifyFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "nil error", err: nil, want: FailureUnknown},
		{name: "generic error", err: errors.New("dockerfile parse error line 3"), want: FailureUnknown},
		{name: "exit code 1", err: newExitError(t.Context(), 1), want: FailureUnknown},

		{name: "context canceled", err: context.Canceled, want: FailureCanceled},
		{name: "wrapped deadline", err: newEngineError("docker", "build", "x:y", context.DeadlineExceeded), want: FailureCanceled},

		{name: "daemon down", err: errors.New("Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?"), want: FailureDaemonUnreachable},
		{name: "socket permission", err: errors.New("Got permission denied while trying to connect to the Docker daemon socket"), want: FailurePermissionDenied},
		{name: "push denied", err: errors.New("denied: requested access to the resource is denied"), want: FailureAuth},

		{name: "exit code 125", err: newExitError(t.Context(), 125), want: FailureTransient},
		{name: "wrapped exit code 125", err: fmt.Errorf("run failed: %w", newExitError(t.Context(), 125)), want: FailureTransient},
		{name: "dns", err: errors.New("Could not resolve host: registry-1.docker.io"), want: FailureTransient},
		{name: "overlay", err: errors.New("error creating overlay mount to /var/lib/docker"), want: FailureTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyFailure(tt.err); got != tt.want {
				t.Errorf("ClassifyFailure(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

// newExitError creates an *exec.ExitError with the given exit code
// by running a command that exits with it.
func newExitError(ctx context.Context, code int) *exec.ExitError {
	cmd := exec.CommandContext(ctx, "sh", "-c", fmt.Sprintf("exit %d", code))
	err := cmd.Run()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil
	}
	return exitErr
}
