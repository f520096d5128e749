// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigantum/gtm/internal/build"
	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/issue"
	"github.com/gigantum/gtm/internal/publish"
)

func TestClassifyError_EngineFailures(t *testing.T) {
	t.Parallel()

	engineErr := func(op, msg string) error {
		return fmt.Errorf("start labmanager-abcdef12: %w",
			&container.EngineError{Engine: "docker", Operation: op, Resource: "labmanager-abcdef12", Cause: errors.New(msg)})
	}

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{
			"daemon down during run",
			engineErr("run", "Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?"),
			issue.DaemonUnreachableId,
		},
		{
			"socket permission during list",
			engineErr("list containers", "Got permission denied while trying to connect to the Docker daemon socket"),
			issue.PermissionDeniedId,
		},
		{
			"daemon down during build",
			engineErr("build", "Cannot connect to the Docker daemon. Is the docker daemon running?"),
			issue.DaemonUnreachableId,
		},
		{
			"registry auth",
			engineErr("push", "unauthorized: authentication required"),
			issue.PushFailedId,
		},
		{
			"canceled",
			&container.EngineError{Engine: "docker", Operation: "build", Cause: context.Canceled},
			0,
		},
		{"unrecognized build failure", engineErr("build", "exit status 1: COPY failed"), issue.BuildFailedId},
		{"unrecognized push failure", engineErr("push", "manifest invalid"), issue.PushFailedId},
		{"unrecognized stop failure", engineErr("stop", "container is restarting"), 0},
		{"declined rebuild", build.ErrUserAborted, 0},
		{"nothing to publish", publish.ErrNoLocalBuilds, issue.NoLocalBuildsId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}
