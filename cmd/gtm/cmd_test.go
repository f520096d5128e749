// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigantum/gtm/internal/config"
	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/labconfig"
	"github.com/gigantum/gtm/internal/platform"
	"github.com/gigantum/gtm/internal/prompt"
	"github.com/gigantum/gtm/internal/testutil"
	"github.com/gigantum/gtm/internal/testutil/enginetest"
	"github.com/gigantum/gtm/internal/tracker"
	"github.com/gigantum/gtm/internal/vcs"
)

const testCommit = "abcdef1234567890abcdef1234567890abcdef12"

type (
	staticConfig struct {
		cfg *config.Config
		err error
	}

	harness struct {
		app    *App
		engine *enginetest.FakeEngine
		cfg    *config.Config
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	}
)

func (p staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if p.err != nil {
		return nil, p.err
	}
	cfg := *p.cfg
	return &cfg, nil
}

// newHarness wires an App to a fake engine, a fixed commit and date, and a
// gtm root in a temp dir holding two base images and the labmanager config files.
func newHarness(t *testing.T, confirmer prompt.Confirmer) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()
	cfg.LabManager.Frontend = false
	require.NoError(t, cfg.ResolvePaths())

	testutil.MustMkdirAll(t, filepath.Join(cfg.BaseImageDir(), "python3-minimal"))
	testutil.MustMkdirAll(t, filepath.Join(cfg.BaseImageDir(), "alpine-base"))
	paths := labconfig.DefaultPaths(cfg.ResourcesDir)
	testutil.MustWriteFile(t, paths.Base, "core:\n  team_mode: false\n")
	testutil.MustWriteFile(t, paths.Override, "core:\n  team_mode: true\n")
	devPaths := labconfig.DeveloperPaths(cfg.ResourcesDir)
	testutil.MustWriteFile(t, devPaths.Override, "core:\n  dev_mode: true\n")

	engine := enginetest.New()
	clock := testutil.NewFakeClock(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC))
	h := &harness{engine: engine, cfg: cfg, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.app = NewApp(Dependencies{
		Config:  staticConfig{cfg: cfg},
		Engines: func(*config.Config) (container.Engine, error) { return engine, nil },
		VCS:     vcs.StaticProvider{Hash: testCommit},
		Platform: func(string) (platform.Profile, error) {
			return platform.Profile{
				GOOS:         platform.Linux,
				UID:          1000,
				HasUID:       true,
				WorkDir:      "/home/dev/gigantum",
				DockerSocket: "/var/run/docker.sock",
			}, nil
		},
		Confirmer: confirmer,
		Now:       clock.Now,
		Stdout:    h.stdout,
		Stderr:    h.stderr,
	})
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	root.SetOut(h.stdout)
	root.SetErr(h.stderr)
	return root.ExecuteContext(t.Context())
}

func (h *harness) record(t *testing.T) *tracker.Record {
	t.Helper()
	rec, err := tracker.New(h.cfg.TrackingFile).Load()
	require.NoError(t, err)
	return rec
}

func TestBaseImageBuild_All(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "baseimage", "build"))

	out := h.stdout.String()
	assert.Contains(t, out, "(1/2) Building Base Image: alpine-base")
	assert.Contains(t, out, "(2/2) Building Base Image: python3-minimal")
	assert.Contains(t, out, " - Tag: gigdev/alpine-base:abcdef12-2024-01-15")
	assert.Contains(t, out, "Built 2 of 2 base image(s)")

	rec := h.record(t)
	assert.Equal(t, 2, rec.Len())
	status, ok := rec.Get("gigdev/alpine-base:abcdef12-2024-01-15")
	require.True(t, ok)
	assert.Equal(t, tracker.Status{Built: true, Published: false}, status)
}

func TestBaseImageBuild_UnknownTarget(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	err := h.run(t, "baseimage", "build", "r-tidyverse")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, h.stderr.String(), "r-tidyverse")
	assert.Zero(t, h.engine.Count("Build"))
	assert.NotContains(t, h.stdout.String(), "Built 0 of 0")
}

func TestBaseImagePublish_AfterBuild(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "baseimage", "build", "alpine-base"))
	require.NoError(t, h.run(t, "baseimage", "publish"))

	assert.Equal(t, 1, h.engine.Count("PushImage"))
	out := h.stdout.String()
	assert.Contains(t, out, "(1/1) Publishing Base Image: gigdev/alpine-base:abcdef12-2024-01-15")
	assert.Contains(t, out, "Published 1 image(s)")

	status, ok := h.record(t).Get("gigdev/alpine-base:abcdef12-2024-01-15")
	require.True(t, ok)
	assert.Equal(t, tracker.Status{Built: true, Published: true}, status)
}

func TestBaseImagePublish_NoLocalBuilds(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	err := h.run(t, "baseimage", "publish")

	require.Error(t, err)
	assert.Contains(t, h.stderr.String(), "you must first build images locally")
	assert.NoFileExists(t, h.cfg.TrackingFile)
}

func TestBaseImagePublish_IgnoresLabManagerAndDeveloperImages(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "labmanager", "build"))
	require.NoError(t, h.run(t, "developer", "build"))
	assert.NoFileExists(t, h.cfg.TrackingFile)

	require.NoError(t, h.run(t, "baseimage", "build", "alpine-base"))
	require.NoError(t, h.run(t, "baseimage", "publish"))

	var pushed []string
	for _, c := range h.engine.Calls() {
		if c.Method == "PushImage" {
			pushed = append(pushed, c.Args...)
		}
	}
	assert.Equal(t, []string{"gigdev/alpine-base:abcdef12-2024-01-15"}, pushed)
	assert.Equal(t, 1, h.record(t).Len())
}

func TestLabManagerBuild(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "labmanager", "build", "--no-cache"))

	assert.True(t, h.engine.HasImage("labmanager-abcdef12"))
	assert.Contains(t, h.stdout.String(), "Built LabManager Image: labmanager-abcdef12")

	merged := testutil.MustReadFile(t, labconfig.DefaultPaths(h.cfg.ResourcesDir).Output)
	assert.Contains(t, merged, "team_mode: true")

	calls := h.engine.Calls()
	require.NotEmpty(t, calls)
	var buildArgs []string
	for _, c := range calls {
		if c.Method == "Build" {
			buildArgs = c.Args
		}
	}
	assert.Equal(t, []string{"labmanager-abcdef12", h.cfg.ResourcesDir, "", "--no-cache"}, buildArgs)
}

func TestLabManagerBuild_OverrideNameMustBePlainName(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	err := h.run(t, "labmanager", "build", "-n", "repo/x:y")

	require.Error(t, err)
	assert.Contains(t, h.stderr.String(), "invalid name")
	assert.Zero(t, h.engine.Count("Build"))

	require.NoError(t, h.run(t, "labmanager", "build", "-n", "my-lab"))
	assert.True(t, h.engine.HasImage("my-lab"))
}

func TestLabManagerBuild_DeclinedRebuild(t *testing.T) {
	t.Parallel()

	confirmer := prompt.NewScripted(false)
	h := newHarness(t, confirmer)
	h.engine.WithImages("labmanager-abcdef12")

	err := h.run(t, "labmanager", "build")

	require.Error(t, err)
	assert.Equal(t, []string{"Image `labmanager-abcdef12` already exists. Do you wish to rebuild it?"}, confirmer.Questions())
	assert.Zero(t, h.engine.Count("Build"))
	assert.NoFileExists(t, h.cfg.TrackingFile)
}

func TestLabManagerBuild_YesSkipsPrompt(t *testing.T) {
	t.Parallel()

	confirmer := prompt.NewScripted()
	h := newHarness(t, confirmer)
	h.engine.WithImages("labmanager-abcdef12")

	require.NoError(t, h.run(t, "labmanager", "build", "--yes"))
	assert.Empty(t, confirmer.Questions())
	assert.Equal(t, 1, h.engine.Count("RemoveImage"))
	assert.Equal(t, 1, h.engine.Count("Build"))
}

func TestLabManagerStartStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "labmanager", "start"))
	assert.Contains(t, h.stdout.String(), "*** Ran: labmanager-abcdef12")
	require.Len(t, h.engine.Running, 1)
	assert.True(t, h.engine.Running[0].HasName("labmanager-abcdef12"))

	err := h.run(t, "labmanager", "start")
	require.Error(t, err)
	assert.Contains(t, h.stderr.String(), "already started")
	assert.Equal(t, 1, h.engine.Count("Run"))

	require.NoError(t, h.run(t, "labmanager", "stop", "--cleanup"))
	assert.Contains(t, h.stdout.String(), "*** Stopped: labmanager-abcdef12")
	assert.Empty(t, h.engine.Running)
	assert.Equal(t, 1, h.engine.Count("PruneStopped"))
}

func TestLabManagerStop_NotRunning(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	err := h.run(t, "labmanager", "stop")

	require.Error(t, err)
	assert.Contains(t, h.stderr.String(), "not started")
	assert.Zero(t, h.engine.Count("Stop"))
}

func TestLabManagerTest(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.engine.WithRunning("labmanager-abcdef12")
	h.engine.ExecOutput = "12 passed in 3.1s\n"

	require.NoError(t, h.run(t, "labmanager", "test"))
	assert.Contains(t, h.stdout.String(), "12 passed")

	h.engine.ExecExitCode = 1
	require.Error(t, h.run(t, "labmanager", "test"))
}

func TestLabManager_OverrideName(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "labmanager", "start", "-n", "my-lab"))
	assert.True(t, h.engine.Running[0].HasName("my-lab"))

	err := h.run(t, "labmanager", "start", "-n", "bad--name")
	require.Error(t, err)
	assert.Equal(t, 1, h.engine.Count("Run"))
}

func TestDeveloperBuildAndStart(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "developer", "build"))

	assert.True(t, h.engine.HasImage("gigantum/labmanager-dev:abcdef12"))
	assert.True(t, h.engine.HasImage("gigantum/labmanager-dev:latest"))
	assert.NoFileExists(t, h.cfg.TrackingFile)

	merged := testutil.MustReadFile(t, labconfig.DeveloperPaths(h.cfg.ResourcesDir).Output)
	assert.Contains(t, merged, "dev_mode: true")
	assert.NotContains(t, merged, "team_mode: true")
	assert.NoFileExists(t, labconfig.DefaultPaths(h.cfg.ResourcesDir).Output)

	require.NoError(t, h.run(t, "developer", "start"))
	require.Len(t, h.engine.Running, 1)
	assert.Equal(t, "gigantum/labmanager-dev:latest", h.engine.Running[0].Image)
	assert.True(t, h.engine.Running[0].HasName("labmanager-dev"))
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	require.NoError(t, h.run(t, "config", "show"))

	out := h.stdout.String()
	assert.Contains(t, out, "Current Configuration")
	assert.Contains(t, out, "(using defaults)")
	assert.Contains(t, out, "namespace: gigdev")
}

func TestConfigLoadFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.app.Config = staticConfig{err: config.ErrConfigNotFound}

	err := h.run(t, "labmanager", "build", "-v")
	require.ErrorIs(t, err, config.ErrConfigNotFound)
	assert.Contains(t, h.stderr.String(), "Error:")
	assert.Zero(t, h.engine.Count("Build"))
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		assert.Equal(t, "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)", getVersionString())
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		assert.Equal(t, "dev (built from source)", getVersionString())
	})
}
