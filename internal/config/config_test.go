// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gigantum/gtm/internal/testutil"
)

func noEnv(string) (string, bool) { return "", false }

// isolatedOptions points every lookup at empty temp directories.
func isolatedOptions(t *testing.T) LoadOptions {
	t.Helper()
	return LoadOptions{
		ConfigDirPath: t.TempDir(),
		WorkDir:       t.TempDir(),
		DotEnvPath:    filepath.Join(t.TempDir(), ".env"),
		LookupEnv:     noEnv,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(t.Context(), isolatedOptions(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SourceFile != "" {
		t.Errorf("SourceFile = %q, want empty", cfg.SourceFile)
	}
	if !filepath.IsAbs(cfg.Root) {
		t.Errorf("Root = %q, want absolute path", cfg.Root)
	}
	if cfg.ResourcesDir != filepath.Join(cfg.Root, "resources") {
		t.Errorf("ResourcesDir = %q", cfg.ResourcesDir)
	}
	if cfg.TrackingFile != filepath.Join(cfg.Root, ".image-build-status.json") {
		t.Errorf("TrackingFile = %q", cfg.TrackingFile)
	}
	if cfg.Engine.Type != EngineAuto {
		t.Errorf("Engine.Type = %q, want %q", cfg.Engine.Type, EngineAuto)
	}
	if cfg.BaseImage.Namespace != "gigdev" {
		t.Errorf("BaseImage.Namespace = %q", cfg.BaseImage.Namespace)
	}
	if !cfg.LabManager.Frontend {
		t.Error("LabManager.Frontend should default to true")
	}
	if !slices.Equal(cfg.Tester.Command, []string{"sh", "-c", "cd /opt && py.test"}) {
		t.Errorf("Tester.Command = %v", cfg.Tester.Command)
	}
}

func TestLoad_ConfigDirFile(t *testing.T) {
	t.Parallel()

	opts := isolatedOptions(t)
	root := t.TempDir()
	path := filepath.Join(opts.ConfigDirPath, "gtm.yaml")
	writeFile(t, path, `root: `+root+`
engine:
  type: podman
  timeout: 90s
labmanager:
  frontend: false
runner:
  work_dir: /srv/gigantum
tester:
  command: ["py.test", "-x"]
`)

	cfg, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SourceFile != path {
		t.Errorf("SourceFile = %q, want %q", cfg.SourceFile, path)
	}
	if cfg.Root != root {
		t.Errorf("Root = %q, want %q", cfg.Root, root)
	}
	if cfg.BaseImageDir() != filepath.Join(root, "resources", "submodules", "base-images") {
		t.Errorf("BaseImageDir() = %q", cfg.BaseImageDir())
	}
	if cfg.Engine.Type != EnginePodman {
		t.Errorf("Engine.Type = %q", cfg.Engine.Type)
	}
	if cfg.Engine.Timeout != 90*time.Second {
		t.Errorf("Engine.Timeout = %v", cfg.Engine.Timeout)
	}
	if cfg.LabManager.Frontend {
		t.Error("LabManager.Frontend = true, want false")
	}
	if cfg.Runner.WorkDir != "/srv/gigantum" {
		t.Errorf("Runner.WorkDir = %q", cfg.Runner.WorkDir)
	}
	if !slices.Equal(cfg.Tester.Command, []string{"py.test", "-x"}) {
		t.Errorf("Tester.Command = %v", cfg.Tester.Command)
	}
	if cfg.BaseImage.Namespace != "gigdev" {
		t.Errorf("unset keys should keep defaults, got namespace %q", cfg.BaseImage.Namespace)
	}
}

func TestLoad_WorkDirFallback(t *testing.T) {
	t.Parallel()

	opts := isolatedOptions(t)
	path := filepath.Join(opts.WorkDir, "gtm.yaml")
	writeFile(t, path, "baseimage:\n  namespace: mydev\n")

	cfg, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SourceFile != path {
		t.Errorf("SourceFile = %q, want %q", cfg.SourceFile, path)
	}
	if cfg.BaseImage.Namespace != "mydev" {
		t.Errorf("BaseImage.Namespace = %q", cfg.BaseImage.Namespace)
	}
}

func TestLoad_ExplicitFileWins(t *testing.T) {
	t.Parallel()

	opts := isolatedOptions(t)
	writeFile(t, filepath.Join(opts.ConfigDirPath, "gtm.yaml"), "baseimage:\n  namespace: dirdev\n")
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, explicit, "baseimage:\n  namespace: explicitdev\n")
	opts.ConfigFilePath = explicit

	cfg, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BaseImage.Namespace != "explicitdev" {
		t.Errorf("BaseImage.Namespace = %q, want explicitdev", cfg.BaseImage.Namespace)
	}
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	t.Parallel()

	opts := isolatedOptions(t)
	opts.ConfigFilePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewProvider().Load(t.Context(), opts)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("Load() error = %v, want ErrConfigNotFound", err)
	}
	if !strings.Contains(err.Error(), "missing.yaml") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	opts := isolatedOptions(t)
	writeFile(t, filepath.Join(opts.ConfigDirPath, "gtm.yaml"), "engine: [unterminated\n")

	_, err := NewProvider().Load(t.Context(), opts)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error should name the operation: %v", err)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Parallel()

	opts := isolatedOptions(t)
	writeFile(t, filepath.Join(opts.ConfigDirPath, "gtm.yaml"), "engine:\n  type: rocket\nbaseimage:\n  namespace: \"\"\n")

	_, err := NewProvider().Load(t.Context(), opts)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}

	var invalid *InvalidConfigError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidConfigError, got %T", err)
	}
	if len(invalid.Fields) != 2 {
		t.Errorf("Fields = %v, want 2 entries", invalid.Fields)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GTM_ENGINE_TYPE", "docker")
	t.Setenv("GTM_BASEIMAGE_NAMESPACE", "envdev")

	opts := isolatedOptions(t)
	opts.LookupEnv = nil
	writeFile(t, filepath.Join(opts.ConfigDirPath, "gtm.yaml"), "engine:\n  type: podman\n")

	cfg, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Type != EngineDocker {
		t.Errorf("Engine.Type = %q, want docker from environment", cfg.Engine.Type)
	}
	if cfg.BaseImage.Namespace != "envdev" {
		t.Errorf("BaseImage.Namespace = %q, want envdev", cfg.BaseImage.Namespace)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	t.Setenv("GTM_ENGINE_TYPE", "podman")

	opts := isolatedOptions(t)
	opts.LookupEnv = nil
	writeFile(t, opts.DotEnvPath, "GTM_ENGINE_TYPE=api\nGTM_REGISTRY_USERNAME=gigbot\nGTM_REGISTRY_PASSWORD=s3cret\nUNRELATED=1\n")

	cfg, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Type != EnginePodman {
		t.Errorf("Engine.Type = %q, process environment should win over .env", cfg.Engine.Type)
	}
	if cfg.Registry.Username != "gigbot" || cfg.Registry.Password != "s3cret" {
		t.Errorf("Registry = %+v, want values from .env", cfg.Registry)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewProvider().Load(ctx, isolatedOptions(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestRender_OmitsPassword(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Registry.Username = "gigbot"
	cfg.Registry.Password = "s3cret"

	out, err := Render(cfg)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	text := string(out)
	if strings.Contains(text, "s3cret") {
		t.Errorf("rendered config leaks the password:\n%s", text)
	}
	if !strings.Contains(text, "username: gigbot") {
		t.Errorf("rendered config missing username:\n%s", text)
	}
	if !strings.Contains(text, "engine:\n  type: auto\n") {
		t.Errorf("expected block style with 2-space indent:\n%s", text)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "gtm")

	path, created, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if !created {
		t.Error("first call should create the file")
	}
	if path != filepath.Join(dir, "gtm.yaml") {
		t.Errorf("path = %q", path)
	}

	opts := isolatedOptions(t)
	opts.ConfigFilePath = path
	cfg, err := NewProvider().Load(t.Context(), opts)
	if err != nil {
		t.Fatalf("loading the generated file: %v", err)
	}
	if cfg.Developer.Image != "gigantum/labmanager-dev" || cfg.Runner.WorkDir != "~/gigantum" {
		t.Errorf("generated file does not round-trip defaults: %+v", cfg)
	}

	writeFile(t, path, "engine:\n  type: podman\n")
	if _, created, err := CreateDefaultConfig(dir); err != nil || created {
		t.Errorf("second call: created=%v err=%v, want existing file kept", created, err)
	}
	if data, _ := os.ReadFile(path); string(data) != "engine:\n  type: podman\n" {
		t.Errorf("existing file was overwritten: %q", data)
	}
}

func TestConfigDirOverride(t *testing.T) {
	SetConfigDirOverride("/tmp/gtm-test-config")
	t.Cleanup(Reset)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/gtm-test-config" {
		t.Errorf("ConfigDir() = %q", dir)
	}
}

func TestConfigDir_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup only applies on Linux")
	}

	t.Run("xdg config home", func(t *testing.T) {
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)

		dir, err := ConfigDir()
		if err != nil {
			t.Fatal(err)
		}
		if dir != filepath.Join(xdg, "gtm") {
			t.Errorf("ConfigDir() = %q", dir)
		}
	})

	t.Run("home fallback", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Cleanup(testutil.SetHomeDir(t, home))

		dir, err := ConfigDir()
		if err != nil {
			t.Fatal(err)
		}
		if dir != filepath.Join(home, ".config", "gtm") {
			t.Errorf("ConfigDir() = %q", dir)
		}
	})
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"engine.type":             "GTM_ENGINE_TYPE",
		"resources_dir":           "GTM_RESOURCES_DIR",
		"labmanager.image_prefix": "GTM_LABMANAGER_IMAGE_PREFIX",
	}
	for key, want := range tests {
		if got := EnvName(key); got != want {
			t.Errorf("EnvName(%q) = %q, want %q", key, got, want)
		}
	}
}
