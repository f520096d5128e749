// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// EngineTypePodman selects the Podman CLI engine.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects the Docker CLI engine.
	EngineTypeDocker EngineType = "docker"
	// EngineTypeAPI selects the Docker Engine API client.
	EngineTypeAPI EngineType = "api"
	// EngineTypeAuto tries Docker, then the Docker API, then Podman.
	EngineTypeAuto EngineType = "auto"
)

var (
	// ErrEngine is the sentinel wrapped by every EngineError.
	ErrEngine = errors.New("container engine operation failed")

	// ErrEngineNotAvailable is the sentinel wrapped by EngineNotAvailableError.
	ErrEngineNotAvailable = errors.New("container engine not available")

	// ErrInvalidEngineType is returned when an engine type string is not recognized.
	ErrInvalidEngineType = errors.New("invalid container engine type")

	// ErrInvalidBuildOptions is returned when BuildOptions miss a context dir or tag.
	ErrInvalidBuildOptions = errors.New("invalid build options")

	// ErrInvalidRunOptions is returned when RunOptions miss an image.
	ErrInvalidRunOptions = errors.New("invalid run options")
)

type (
	// Engine is the capability set the orchestrators need from a container engine.
	// Implementations never retry; every failure is reported as an *EngineError.
	Engine interface {
		// Name returns the engine name (docker, podman, api).
		Name() string
		// Available reports whether the engine can be reached.
		Available() bool
		// Version returns the engine server version.
		Version(ctx context.Context) (string, error)

		// ImageExists reports whether an image with the exact tag is present locally.
		ImageExists(ctx context.Context, image string) (bool, error)
		// Build builds an image from a Dockerfile. Output is streamed to opts.Stdout.
		Build(ctx context.Context, opts BuildOptions) error
		// RemoveImage removes a local image.
		RemoveImage(ctx context.Context, image string, force bool) error
		// TagImage adds target as an additional tag of source.
		TagImage(ctx context.Context, source, target string) error
		// PushImage pushes an image to its registry, streaming progress to out.
		PushImage(ctx context.Context, image string, out io.Writer) error

		// Run creates and starts a container.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// ListRunning returns running containers whose name matches nameFilter.
		// Matching follows the engine's name filter and may include partial matches.
		ListRunning(ctx context.Context, nameFilter string) ([]ContainerInfo, error)
		// Stop stops a running container.
		Stop(ctx context.Context, nameOrID string) error
		// PruneStopped removes all stopped containers.
		PruneStopped(ctx context.Context) error
		// Exec runs a command inside a running container.
		Exec(ctx context.Context, nameOrID string, command []string, opts ExecOptions) (*RunResult, error)
	}

	// EngineType identifies the container engine implementation.
	EngineType string

	// BuildOptions contains options for building an image.
	BuildOptions struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Dockerfile is the Dockerfile path, relative to ContextDir unless absolute.
		Dockerfile string
		// Tag is the primary image tag.
		Tag string
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// Labels are image labels.
		Labels map[string]string
		// NoCache disables the build cache.
		NoCache bool
		// Pull always attempts to pull newer base images.
		Pull bool
		// Stdout receives build output. Nil discards it.
		Stdout io.Writer
		// Stderr receives build errors. Nil discards them.
		Stderr io.Writer
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Image is the image to run.
		Image string
		// Name is the container name.
		Name string
		// Command overrides the image command.
		Command []string
		// Env contains environment variables.
		Env map[string]string
		// Volumes are bind mounts.
		Volumes []VolumeMount
		// Ports are published ports.
		Ports []PortMapping
		// Detach runs the container in the background.
		Detach bool
		// Init runs an init process as PID 1.
		Init bool
		// Remove deletes the container when it exits.
		Remove bool
		// Stdout receives container output for attached runs.
		Stdout io.Writer
		// Stderr receives container errors for attached runs.
		Stderr io.Writer
	}

	// ExecOptions contains options for executing a command in a container.
	ExecOptions struct {
		// WorkDir is the working directory inside the container.
		WorkDir string
		// Env contains environment variables.
		Env map[string]string
		// Stdout receives command output.
		Stdout io.Writer
		// Stderr receives command errors.
		Stderr io.Writer
	}

	// RunResult contains the result of a run or exec.
	RunResult struct {
		// ContainerID is the container ID (detached runs and exec).
		ContainerID string
		// ExitCode is the exit code of an attached run or exec.
		ExitCode int
	}

	// ContainerInfo describes a running container.
	ContainerInfo struct {
		ID    string
		Names []string
		Image string
		State string
	}

	// EngineError wraps a failure reported by the container engine.
	// It satisfies errors.Is for ErrEngine and for its cause.
	EngineError struct {
		Engine    string
		Operation string
		Resource  string
		Cause     error
	}

	// EngineNotAvailableError is returned when no engine of the requested type can be reached.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}

	// InvalidEngineTypeError is returned by ParseEngineType for unknown values.
	InvalidEngineTypeError struct {
		Value string
	}
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	var msg strings.Builder
	msg.WriteString(e.Engine)
	msg.WriteString(" ")
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(" ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns ErrEngine and the underlying cause.
func (e *EngineError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrEngine}
	}
	return []error{ErrEngine, e.Cause}
}

// Error implements the error interface.
func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineNotAvailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineNotAvailable }

// Error implements the error interface.
func (e *InvalidEngineTypeError) Error() string {
	return fmt.Sprintf("invalid container engine type %q (valid: docker, podman, api, auto)", e.Value)
}

// Unwrap returns ErrInvalidEngineType for errors.Is() compatibility.
func (e *InvalidEngineTypeError) Unwrap() error { return ErrInvalidEngineType }

// ParseEngineType converts a config value into an EngineType.
// The empty string selects EngineTypeAuto.
func ParseEngineType(s string) (EngineType, error) {
	switch t := EngineType(strings.ToLower(strings.TrimSpace(s))); t {
	case EngineTypeDocker, EngineTypePodman, EngineTypeAPI, EngineTypeAuto:
		return t, nil
	case "":
		return EngineTypeAuto, nil
	default:
		return "", &InvalidEngineTypeError{Value: s}
	}
}

// String returns the string representation of the EngineType.
func (t EngineType) String() string { return string(t) }

// Validate returns an error if BuildOptions cannot produce a build.
func (o BuildOptions) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ContextDir) == "" {
		errs = append(errs, fmt.Errorf("%w: context directory is required", ErrInvalidBuildOptions))
	}
	if strings.TrimSpace(o.Tag) == "" {
		errs = append(errs, fmt.Errorf("%w: tag is required", ErrInvalidBuildOptions))
	}
	return errors.Join(errs...)
}

// Validate returns an error if RunOptions miss the image or carry invalid mappings.
func (o RunOptions) Validate() error {
	var errs []error
	if strings.TrimSpace(o.Image) == "" {
		errs = append(errs, fmt.Errorf("%w: image is required", ErrInvalidRunOptions))
	}
	for _, v := range o.Volumes {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range o.Ports {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HasName reports whether name is one of the container's names.
// Docker reports names with a leading slash, which is ignored.
func (c ContainerInfo) HasName(name string) bool {
	for _, n := range c.Names {
		if strings.TrimPrefix(n, "/") == name {
			return true
		}
	}
	return false
}

// NewEngine creates the engine selected by engineType. Docker and Podman fall
// back to each other when the preferred one is not available.
func NewEngine(engineType EngineType) (Engine, error) {
	switch engineType {
	case EngineTypeDocker:
		if docker := NewDockerEngine(); docker.Available() {
			return docker, nil
		}
		if podman := NewPodmanEngine(); podman.Available() {
			return podman, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	case EngineTypePodman:
		if podman := NewPodmanEngine(); podman.Available() {
			return podman, nil
		}
		if docker := NewDockerEngine(); docker.Available() {
			return docker, nil
		}
		return nil, &EngineNotAvailableError{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	case EngineTypeAPI:
		api, err := NewAPIEngine()
		if err != nil {
			return nil, &EngineNotAvailableError{Engine: "api", Reason: err.Error()}
		}
		if !api.Available() {
			_ = api.Close()
			return nil, &EngineNotAvailableError{
				Engine: "api",
				Reason: "the Docker daemon did not answer on the configured host",
			}
		}
		return api, nil

	case EngineTypeAuto, "":
		return AutoDetectEngine()

	default:
		return nil, &InvalidEngineTypeError{Value: string(engineType)}
	}
}

// AutoDetectEngine returns the first reachable engine, trying the Docker CLI,
// the Docker API, and Podman in that order.
func AutoDetectEngine() (Engine, error) {
	if docker := NewDockerEngine(); docker.Available() {
		return docker, nil
	}

	if api, err := NewAPIEngine(); err == nil {
		if api.Available() {
			return api, nil
		}
		_ = api.Close()
	}

	if podman := NewPodmanEngine(); podman.Available() {
		return podman, nil
	}

	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (docker or podman) is available on this system",
	}
}

func newEngineError(engine, operation, resource string, cause error) *EngineError {
	return &EngineError{Engine: engine, Operation: operation, Resource: resource, Cause: cause}
}
