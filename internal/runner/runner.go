// SPDX-License-Identifier: MPL-2.0

// Package runner starts and stops the labmanager container with the host
// mappings it needs: the web port, the working directory, and the engine socket.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/naming"
	"github.com/gigantum/gtm/internal/platform"
)

const (
	// WebPort is the labmanager web port, published on the same host port.
	WebPort container.NetworkPort = 5000
	// WorkDirMount is where the host working directory appears in the container.
	WorkDirMount = "/mnt/gigantum"
	// DockerSocketMount is where the host engine socket appears in the container.
	DockerSocketMount = "/var/run/docker.sock"

	// EnvLocalUserID carries the host uid so files written to the mount keep their owner.
	EnvLocalUserID = "LOCAL_USER_ID"
	// EnvHostWorkDir carries the host path of the working directory.
	EnvHostWorkDir = "HOST_WORK_DIR"
)

const (
	// StateStopped means no container with the name is running.
	StateStopped State = iota
	// StateStarting means the run call is in flight.
	StateStarting
	// StateRunning means exactly one container with the name is running.
	StateRunning
	// StateStopping means the stop call is in flight.
	StateStopping
)

var (
	// ErrAlreadyRunning is returned by Start when the container is already running.
	ErrAlreadyRunning = errors.New("container is already started")

	// ErrNotRunning is returned by Stop when the container is not running.
	ErrNotRunning = errors.New("container is not started")

	// ErrAmbiguousState is the sentinel error wrapped by AmbiguousStateError.
	ErrAmbiguousState = errors.New("more than one container matched a unique name")
)

type (
	// State is the lifecycle state of a named container.
	State int

	// AmbiguousStateError is returned when several running containers carry the same name.
	AmbiguousStateError struct {
		Name    string
		Matches []string
	}

	// Runner manages one named container at a time.
	Runner struct {
		engine   container.Engine
		profile  platform.Profile
		logger   *log.Logger
		observer func(name string, from, to State)
	}

	// Option configures a Runner.
	Option func(*Runner)
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Error implements the error interface.
func (e *AmbiguousStateError) Error() string {
	return fmt.Sprintf("%d running containers are named %q: %v", len(e.Matches), e.Name, e.Matches)
}

// Unwrap returns ErrAmbiguousState for errors.Is() compatibility.
func (e *AmbiguousStateError) Unwrap() error { return ErrAmbiguousState }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithObserver registers a callback for lifecycle transitions.
func WithObserver(fn func(name string, from, to State)) Option {
	return func(r *Runner) { r.observer = fn }
}

// New creates a Runner for the host described by profile.
func New(engine container.Engine, profile platform.Profile, opts ...Option) *Runner {
	r := &Runner{
		engine:  engine,
		profile: profile,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsRunning reports whether exactly one running container is named name.
func (r *Runner) IsRunning(ctx context.Context, name naming.ContainerName) (bool, error) {
	matches, err := r.running(ctx, name)
	if err != nil {
		return false, err
	}
	return len(matches) == 1, nil
}

// Start runs image detached under name with the platform mappings.
func (r *Runner) Start(ctx context.Context, image naming.ImageTag, name naming.ContainerName) error {
	matches, err := r.running(ctx, name)
	if err != nil {
		return err
	}
	if len(matches) > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}

	opts := r.RunOptions(image, name)
	r.notify(name, StateStopped, StateStarting)
	result, err := r.engine.Run(ctx, opts)
	if err != nil {
		r.notify(name, StateStarting, StateStopped)
		return err
	}
	r.logger.Debug("container started", "name", name, "image", image, "id", result.ContainerID)
	r.notify(name, StateStarting, StateRunning)
	return nil
}

// RunOptions returns the engine options Start uses for image and name.
func (r *Runner) RunOptions(image naming.ImageTag, name naming.ContainerName) container.RunOptions {
	env := map[string]string{
		EnvHostWorkDir: r.profile.WorkDir,
	}
	if r.profile.HasUID {
		env[EnvLocalUserID] = strconv.Itoa(r.profile.UID)
	}

	return container.RunOptions{
		Image: image.String(),
		Name:  name.String(),
		Ports: []container.PortMapping{
			{HostPort: WebPort, ContainerPort: WebPort, Protocol: container.PortProtocolTCP},
		},
		Volumes: []container.VolumeMount{
			{HostPath: r.profile.MountableWorkDir(), ContainerPath: WorkDirMount},
			{HostPath: r.profile.DockerSocket, ContainerPath: DockerSocketMount},
		},
		Env:    env,
		Detach: true,
		Init:   true,
	}
}

// Stop stops the container named name. With cleanup, stopped containers are
// pruned afterwards.
func (r *Runner) Stop(ctx context.Context, name naming.ContainerName, cleanup bool) error {
	matches, err := r.running(ctx, name)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}

	r.notify(name, StateRunning, StateStopping)
	if err := r.engine.Stop(ctx, matches[0].ID); err != nil {
		r.notify(name, StateStopping, StateRunning)
		return err
	}
	r.notify(name, StateStopping, StateStopped)

	if cleanup {
		return r.Prune(ctx)
	}
	return nil
}

// Prune removes all stopped containers.
func (r *Runner) Prune(ctx context.Context) error {
	r.logger.Debug("pruning stopped containers")
	return r.engine.PruneStopped(ctx)
}

// running returns the running containers whose name is exactly name. More
// than one match is reported as an AmbiguousStateError.
func (r *Runner) running(ctx context.Context, name naming.ContainerName) ([]container.ContainerInfo, error) {
	candidates, err := r.engine.ListRunning(ctx, name.String())
	if err != nil {
		return nil, err
	}

	var matches []container.ContainerInfo
	for _, c := range candidates {
		if c.HasName(name.String()) {
			matches = append(matches, c)
		}
	}
	if len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, c := range matches {
			ids[i] = c.ID
		}
		return nil, &AmbiguousStateError{Name: name.String(), Matches: ids}
	}
	return matches, nil
}

func (r *Runner) notify(name naming.ContainerName, from, to State) {
	r.logger.Debug("container state", "name", name, "from", from, "to", to)
	if r.observer != nil {
		r.observer(name.String(), from, to)
	}
}
