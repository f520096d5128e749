// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gigantum/gtm/internal/issue"
	"github.com/gigantum/gtm/internal/platform"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application name.
	AppName = "gtm"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "gtm"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "GTM"
	// DotEnvFile is read from the gtm root when present.
	DotEnvFile = ".env"
)

// ErrConfigNotFound is returned when an explicit config file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// ConfigDir returns the gtm configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// EnvName returns the environment variable that overrides key,
// e.g. "engine.type" becomes GTM_ENGINE_TYPE.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// loadWithOptions performs option-driven config loading without mutating
// package-level or process state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := locateConfigFile(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load config").
				WithResource(path).
				WithSuggestion("Check that the file contains valid YAML").
				WithSuggestion("Run 'gtm config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	dotEnvPath := opts.DotEnvPath
	if dotEnvPath == "" {
		if root, absErr := filepath.Abs(v.GetString("root")); absErr == nil {
			dotEnvPath = filepath.Join(root, DotEnvFile)
		}
	}
	if err := applyDotEnv(v, dotEnvPath, opts.lookupEnv()); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load config").
			WithResource(dotEnvPath).
			WithSuggestion("Use KEY=value lines, e.g. GTM_ENGINE_TYPE=docker").
			Wrap(err).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load config").
			WithResource(path).
			WithSuggestion("Check value types, e.g. engine.timeout takes a duration such as 10m").
			Wrap(err).
			BuildError()
	}
	cfg.SourceFile = path

	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate config").
			WithResource(path).
			WithSuggestion("engine.type must be one of docker, podman, api or auto").
			WithSuggestion("Run 'gtm config show' to see the effective configuration").
			Wrap(err).
			BuildError()
	}

	return &cfg, nil
}

// locateConfigFile returns the explicit file, or the first gtm.yaml found in
// the config directory and then the working directory. An empty path means
// defaults only.
func locateConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load config").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'gtm config init' to create a default config file").
				Wrap(fmt.Errorf("%w: %s", ErrConfigNotFound, opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}

	fileName := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(cfgDir, fileName), filepath.Join(opts.WorkDir, fileName)} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// applyDotEnv copies GTM_* entries from a .env file into v. Variables already
// set in the process environment win over the file.
func applyDotEnv(v *viper.Viper, path string, lookup func(string) (string, bool)) error {
	if path == "" {
		return nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	for _, key := range v.AllKeys() {
		name := EnvName(key)
		value, ok := values[name]
		if !ok {
			continue
		}
		if _, set := lookup(name); set {
			continue
		}
		v.Set(key, value)
	}
	return nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("root", defaults.Root)
	v.SetDefault("resources_dir", defaults.ResourcesDir)
	v.SetDefault("tracking_file", defaults.TrackingFile)
	v.SetDefault("engine.type", defaults.Engine.Type)
	v.SetDefault("engine.timeout", defaults.Engine.Timeout)
	v.SetDefault("registry.server", defaults.Registry.Server)
	v.SetDefault("registry.username", defaults.Registry.Username)
	v.SetDefault("registry.password", defaults.Registry.Password)
	v.SetDefault("baseimage.namespace", defaults.BaseImage.Namespace)
	v.SetDefault("baseimage.dir", defaults.BaseImage.Dir)
	v.SetDefault("labmanager.image_prefix", defaults.LabManager.ImagePrefix)
	v.SetDefault("labmanager.ui_builder_image", defaults.LabManager.UIBuilderImage)
	v.SetDefault("labmanager.frontend", defaults.LabManager.Frontend)
	v.SetDefault("developer.image", defaults.Developer.Image)
	v.SetDefault("developer.dockerfile", defaults.Developer.Dockerfile)
	v.SetDefault("developer.container_name", defaults.Developer.ContainerName)
	v.SetDefault("runner.work_dir", defaults.Runner.WorkDir)
	v.SetDefault("tester.command", defaults.Tester.Command)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.assume_yes", defaults.UI.AssumeYes)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// Render encodes cfg as block-style YAML. The registry password is never included.
func Render(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// CreateDefaultConfig writes the default settings to gtm.yaml in dir unless
// the file already exists. It returns the file path and whether it was written.
func CreateDefaultConfig(dir string) (string, bool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	content, err := Render(DefaultConfig())
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, true, nil
}
