// SPDX-License-Identifier: MPL-2.0

package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigantum/gtm/internal/labconfig"
	"github.com/gigantum/gtm/internal/testutil"
	"github.com/gigantum/gtm/internal/testutil/enginetest"
)

func TestFrontendHook(t *testing.T) {
	t.Parallel()

	engine := enginetest.New().WithImages(DefaultUIBuilderImage)
	dir := t.TempDir()
	out := filepath.Join(dir, "build")

	hook := FrontendHook(engine, FrontendOptions{
		ContextDir: dir,
		OutputDir:  out,
		HostPath:   func(p string) string { return "//host" + p },
	})

	var buf bytes.Buffer
	require.NoError(t, hook(context.Background(), Target{Name: "labmanager"}, &buf))

	assert.DirExists(t, out)
	assert.Equal(t, []string{"ImageExists", "RemoveImage", "Build", "Run"}, engine.Methods())

	run := engine.Calls()[3]
	assert.Contains(t, run.Args, "//host"+out+":"+DefaultUIBuildMount)
	assert.Contains(t, run.Args, "--init")
	assert.Contains(t, buf.String(), "Compiling frontend")
}

func TestFrontendHook_NonZeroExit(t *testing.T) {
	t.Parallel()

	engine := enginetest.New()
	engine.RunExitCode = 2
	hook := FrontendHook(engine, FrontendOptions{ContextDir: t.TempDir(), OutputDir: filepath.Join(t.TempDir(), "b")})

	err := hook(context.Background(), Target{}, bytes.NewBuffer(nil))
	var feErr *FrontendError
	require.ErrorAs(t, err, &feErr)
	assert.Equal(t, 2, feErr.ExitCode)
}

func TestFrontendHook_BuildFailure(t *testing.T) {
	t.Parallel()

	engine := enginetest.New()
	engine.FailOn["Build"] = errors.New("pull access denied")
	hook := FrontendHook(engine, FrontendOptions{ContextDir: t.TempDir(), OutputDir: filepath.Join(t.TempDir(), "b")})

	require.Error(t, hook(context.Background(), Target{}, bytes.NewBuffer(nil)))
	assert.Zero(t, engine.Count("Run"))
}

func TestConfigMergeHook(t *testing.T) {
	t.Parallel()

	res := t.TempDir()
	paths := labconfig.DefaultPaths(res)
	testutil.MustWriteFile(t, paths.Base, "core:\n  team_mode: false\n")
	testutil.MustWriteFile(t, paths.Override, "core:\n  team_mode: true\n")

	require.NoError(t, ConfigMergeHook(paths)(context.Background(), Target{}, bytes.NewBuffer(nil)))

	data, err := os.ReadFile(paths.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "team_mode: true")
}
