// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// EngineDocker uses the docker CLI.
	EngineDocker = "docker"
	// EnginePodman uses the podman CLI.
	EnginePodman = "podman"
	// EngineAPI talks to the Docker Engine API directly.
	EngineAPI = "api"
	// EngineAuto picks the first available engine.
	EngineAuto = "auto"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config holds all gtm settings.
	Config struct {
		// Root is the gtm repository checkout. Relative paths below are resolved against it.
		Root string `mapstructure:"root" yaml:"root" validate:"required"`
		// ResourcesDir holds Dockerfiles and submodules. Default: <root>/resources.
		ResourcesDir string `mapstructure:"resources_dir" yaml:"resources_dir"`
		// TrackingFile is the build status file. Default: <root>/.image-build-status.json.
		TrackingFile string `mapstructure:"tracking_file" yaml:"tracking_file"`

		Engine     EngineConfig     `mapstructure:"engine" yaml:"engine"`
		Registry   RegistryConfig   `mapstructure:"registry" yaml:"registry"`
		BaseImage  BaseImageConfig  `mapstructure:"baseimage" yaml:"baseimage"`
		LabManager LabManagerConfig `mapstructure:"labmanager" yaml:"labmanager"`
		Developer  DeveloperConfig  `mapstructure:"developer" yaml:"developer"`
		Runner     RunnerConfig     `mapstructure:"runner" yaml:"runner"`
		Tester     TesterConfig     `mapstructure:"tester" yaml:"tester"`
		UI         UIConfig         `mapstructure:"ui" yaml:"ui"`

		// SourceFile is the config file that was read, empty when only defaults applied.
		SourceFile string `mapstructure:"-" yaml:"-"`
	}

	// EngineConfig selects and bounds the container engine.
	EngineConfig struct {
		Type string `mapstructure:"type" yaml:"type" validate:"oneof=docker podman api auto"`
		// Timeout bounds each engine call. Zero means no limit.
		Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	}

	// RegistryConfig holds push credentials for the api engine. The CLI
	// engines use the credentials stored by `docker login` instead.
	RegistryConfig struct {
		Server   string `mapstructure:"server" yaml:"server,omitempty"`
		Username string `mapstructure:"username" yaml:"username,omitempty"`
		Password string `mapstructure:"password" yaml:"-"`
	}

	// BaseImageConfig configures base image builds.
	BaseImageConfig struct {
		Namespace string `mapstructure:"namespace" yaml:"namespace" validate:"required"`
		// Dir holds one build directory per base image, relative to ResourcesDir.
		Dir string `mapstructure:"dir" yaml:"dir" validate:"required"`
	}

	// LabManagerConfig configures the labmanager image and container.
	LabManagerConfig struct {
		// ImagePrefix names the image "<prefix>-<commit8>".
		ImagePrefix    string `mapstructure:"image_prefix" yaml:"image_prefix" validate:"required"`
		UIBuilderImage string `mapstructure:"ui_builder_image" yaml:"ui_builder_image" validate:"required"`
		// Frontend compiles the UI before building the image.
		Frontend bool `mapstructure:"frontend" yaml:"frontend"`
	}

	// DeveloperConfig configures the developer image.
	DeveloperConfig struct {
		Image         string `mapstructure:"image" yaml:"image" validate:"required"`
		Dockerfile    string `mapstructure:"dockerfile" yaml:"dockerfile" validate:"required"`
		ContainerName string `mapstructure:"container_name" yaml:"container_name" validate:"required"`
	}

	// RunnerConfig configures started containers.
	RunnerConfig struct {
		// WorkDir is mounted at /mnt/gigantum. A leading ~ is expanded.
		WorkDir string `mapstructure:"work_dir" yaml:"work_dir" validate:"required"`
	}

	// TesterConfig configures `labmanager test`.
	TesterConfig struct {
		Command []string `mapstructure:"command" yaml:"command" validate:"required,min=1"`
	}

	// UIConfig holds presentation defaults.
	UIConfig struct {
		Verbose   bool `mapstructure:"verbose" yaml:"verbose"`
		AssumeYes bool `mapstructure:"assume_yes" yaml:"assume_yes"`
	}

	// InvalidConfigError lists the fields that failed validation.
	InvalidConfigError struct {
		Fields []string
		Cause  error
	}
)

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Root: ".",
		Engine: EngineConfig{
			Type: EngineAuto,
		},
		BaseImage: BaseImageConfig{
			Namespace: "gigdev",
			Dir:       filepath.Join("submodules", "base-images"),
		},
		LabManager: LabManagerConfig{
			ImagePrefix:    "labmanager",
			UIBuilderImage: "gigantum/labmanager-ui-builder",
			Frontend:       true,
		},
		Developer: DeveloperConfig{
			Image:         "gigantum/labmanager-dev",
			Dockerfile:    "Dockerfile_developer",
			ContainerName: "labmanager-dev",
		},
		Runner: RunnerConfig{
			WorkDir: "~/gigantum",
		},
		Tester: TesterConfig{
			Command: []string{"sh", "-c", "cd /opt && py.test"},
		},
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Fields, "; "))
}

// Unwrap returns ErrInvalidConfig and the validator error.
func (e *InvalidConfigError) Unwrap() []error { return []error{ErrInvalidConfig, e.Cause} }

// Validate checks field constraints.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &InvalidConfigError{Cause: err}
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return &InvalidConfigError{Fields: fields, Cause: err}
}

// ResolvePaths makes Root absolute and fills ResourcesDir and TrackingFile
// from it when they are empty or relative.
func (c *Config) ResolvePaths() error {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fmt.Errorf("resolve root %q: %w", c.Root, err)
	}
	c.Root = root

	c.ResourcesDir = resolveUnder(root, c.ResourcesDir, "resources")
	c.TrackingFile = resolveUnder(root, c.TrackingFile, ".image-build-status.json")
	return nil
}

// BaseImageDir returns the absolute base image directory.
func (c *Config) BaseImageDir() string {
	return resolveUnder(c.ResourcesDir, c.BaseImage.Dir, "")
}

func resolveUnder(base, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
