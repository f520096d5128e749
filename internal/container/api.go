// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/build"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"golang.org/x/term"
)

// pingTimeout bounds the daemon reachability check in Available.
const pingTimeout = 3 * time.Second

type (
	// APIEngine implements the Engine interface against the Docker Engine API.
	APIEngine struct {
		cli          client.APIClient
		registryAuth string
	}

	// APIEngineOption configures an APIEngine.
	APIEngineOption func(*APIEngine)
)

// WithAPIClient replaces the Docker client, for tests.
func WithAPIClient(cli client.APIClient) APIEngineOption {
	return func(e *APIEngine) {
		e.cli = cli
	}
}

// WithRegistryAuth sets the credentials sent with image pushes.
func WithRegistryAuth(username, password, serverAddress string) APIEngineOption {
	return func(e *APIEngine) {
		auth, err := registry.EncodeAuthConfig(registry.AuthConfig{
			Username:      username,
			Password:      password,
			ServerAddress: serverAddress,
		})
		if err == nil {
			e.registryAuth = auth
		}
	}
}

// NewAPIEngine creates an engine talking to the daemon configured by the
// DOCKER_HOST family of environment variables.
func NewAPIEngine(opts ...APIEngineOption) (*APIEngine, error) {
	e := &APIEngine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.cli == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return nil, fmt.Errorf("failed to create docker client: %w", err)
		}
		e.cli = cli
	}

	if e.registryAuth == "" {
		// The daemon expects the header even for anonymous pushes.
		auth, err := registry.EncodeAuthConfig(registry.AuthConfig{})
		if err != nil {
			return nil, fmt.Errorf("failed to encode registry auth: %w", err)
		}
		e.registryAuth = auth
	}

	return e, nil
}

// Name returns the engine name.
func (e *APIEngine) Name() string {
	return string(EngineTypeAPI)
}

// Close releases the underlying client connection.
func (e *APIEngine) Close() error {
	return e.cli.Close()
}

// Available checks if the daemon answers a ping.
func (e *APIEngine) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	_, err := e.cli.Ping(ctx)
	return err == nil
}

// Version returns the daemon version.
func (e *APIEngine) Version(ctx context.Context) (string, error) {
	v, err := e.cli.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get docker version: %w", err)
	}
	return v.Version, nil
}

// ImageExists checks if an image exists locally.
func (e *APIEngine) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := e.cli.ImageInspect(ctx, ref)
	switch {
	case err == nil:
		return true, nil
	case cerrdefs.IsNotFound(err):
		return false, nil
	default:
		return false, newEngineError(e.Name(), "inspect image", ref, err)
	}
}

// Build sends the context directory to the daemon and streams build progress.
// An error reported inside the progress stream fails the build.
func (e *APIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	dockerfile, err := relativeDockerfile(opts.ContextDir, opts.Dockerfile)
	if err != nil {
		return newEngineError(e.Name(), "build", opts.Tag, err)
	}

	buildContext, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{})
	if err != nil {
		return newEngineError(e.Name(), "build", opts.Tag, fmt.Errorf("failed to archive build context: %w", err))
	}
	defer func() { _ = buildContext.Close() }()

	buildArgs := make(map[string]*string, len(opts.BuildArgs))
	for _, k := range slices.Sorted(maps.Keys(opts.BuildArgs)) {
		v := opts.BuildArgs[k]
		buildArgs[k] = &v
	}

	resp, err := e.cli.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  dockerfile,
		Labels:      opts.Labels,
		BuildArgs:   buildArgs,
		NoCache:     opts.NoCache,
		PullParent:  opts.Pull,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return newEngineError(e.Name(), "build", opts.Tag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := displayStream(resp.Body, opts.Stdout); err != nil {
		return newEngineError(e.Name(), "build", opts.Tag, err)
	}
	return nil
}

// RemoveImage removes an image.
func (e *APIEngine) RemoveImage(ctx context.Context, ref string, force bool) error {
	if _, err := e.cli.ImageRemove(ctx, ref, image.RemoveOptions{Force: force, PruneChildren: true}); err != nil {
		return newEngineError(e.Name(), "remove image", ref, err)
	}
	return nil
}

// TagImage adds target as an additional tag of source.
func (e *APIEngine) TagImage(ctx context.Context, source, target string) error {
	if err := e.cli.ImageTag(ctx, source, target); err != nil {
		return newEngineError(e.Name(), "tag image", source+" as "+target, err)
	}
	return nil
}

// PushImage pushes an image and streams progress to out.
// An error reported inside the progress stream fails the push.
func (e *APIEngine) PushImage(ctx context.Context, ref string, out io.Writer) error {
	rc, err := e.cli.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: e.registryAuth})
	if err != nil {
		return newEngineError(e.Name(), "push", ref, err)
	}
	defer func() { _ = rc.Close() }()

	if err := displayStream(rc, out); err != nil {
		return newEngineError(e.Name(), "push", ref, err)
	}
	return nil
}

// Run creates and starts a container. Attached runs wait for exit and copy
// the container logs to the configured writers.
func (e *APIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cfg, hostCfg, err := containerConfig(opts)
	if err != nil {
		return nil, newEngineError(e.Name(), "run", opts.Image, err)
	}

	created, err := e.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if err != nil {
		return nil, newEngineError(e.Name(), "run", opts.Image, err)
	}
	result := &RunResult{ContainerID: created.ID}

	if opts.Detach {
		if err := e.cli.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
			return nil, newEngineError(e.Name(), "run", opts.Image, err)
		}
		return result, nil
	}

	statusCh, errCh := e.cli.ContainerWait(ctx, created.ID, dockercontainer.WaitConditionNextExit)
	if err := e.cli.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		return nil, newEngineError(e.Name(), "run", opts.Image, err)
	}

	logs, err := e.cli.ContainerLogs(ctx, created.ID, dockercontainer.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return nil, newEngineError(e.Name(), "run", opts.Image, err)
	}
	_, copyErr := stdcopy.StdCopy(writerOrDiscard(opts.Stdout), writerOrDiscard(opts.Stderr), logs)
	_ = logs.Close()
	if copyErr != nil && ctx.Err() == nil {
		return nil, newEngineError(e.Name(), "run", opts.Image, copyErr)
	}

	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, newEngineError(e.Name(), "run", opts.Image, errors.New(status.Error.Message))
		}
		result.ExitCode = int(status.StatusCode)
	case err := <-errCh:
		return nil, newEngineError(e.Name(), "run", opts.Image, err)
	}
	return result, nil
}

// ListRunning returns running containers whose name matches nameFilter.
func (e *APIEngine) ListRunning(ctx context.Context, nameFilter string) ([]ContainerInfo, error) {
	args := filters.NewArgs()
	if nameFilter != "" {
		args.Add("name", nameFilter)
	}

	list, err := e.cli.ContainerList(ctx, dockercontainer.ListOptions{Filters: args})
	if err != nil {
		return nil, newEngineError(e.Name(), "list containers", nameFilter, err)
	}

	infos := make([]ContainerInfo, 0, len(list))
	for _, c := range list {
		names := make([]string, 0, len(c.Names))
		for _, n := range c.Names {
			names = append(names, strings.TrimPrefix(n, "/"))
		}
		infos = append(infos, ContainerInfo{ID: c.ID, Names: names, Image: c.Image, State: string(c.State)})
	}
	return infos, nil
}

// Stop stops a running container.
func (e *APIEngine) Stop(ctx context.Context, nameOrID string) error {
	if err := e.cli.ContainerStop(ctx, nameOrID, dockercontainer.StopOptions{}); err != nil {
		return newEngineError(e.Name(), "stop", nameOrID, err)
	}
	return nil
}

// PruneStopped removes all stopped containers.
func (e *APIEngine) PruneStopped(ctx context.Context) error {
	if _, err := e.cli.ContainersPrune(ctx, filters.NewArgs()); err != nil {
		return newEngineError(e.Name(), "prune containers", "", err)
	}
	return nil
}

// Exec runs a command in a running container and reports its exit code.
func (e *APIEngine) Exec(ctx context.Context, nameOrID string, command []string, opts ExecOptions) (*RunResult, error) {
	created, err := e.cli.ContainerExecCreate(ctx, nameOrID, dockercontainer.ExecOptions{
		Cmd:          command,
		WorkingDir:   opts.WorkDir,
		Env:          envList(opts.Env),
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, newEngineError(e.Name(), "exec", nameOrID, err)
	}

	attached, err := e.cli.ContainerExecAttach(ctx, created.ID, dockercontainer.ExecAttachOptions{})
	if err != nil {
		return nil, newEngineError(e.Name(), "exec", nameOrID, err)
	}
	_, copyErr := stdcopy.StdCopy(writerOrDiscard(opts.Stdout), writerOrDiscard(opts.Stderr), attached.Reader)
	attached.Close()
	if copyErr != nil {
		return nil, newEngineError(e.Name(), "exec", nameOrID, copyErr)
	}

	inspect, err := e.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, newEngineError(e.Name(), "exec", nameOrID, err)
	}
	return &RunResult{ContainerID: nameOrID, ExitCode: inspect.ExitCode}, nil
}

// containerConfig translates RunOptions into the API create payload.
func containerConfig(opts RunOptions) (*dockercontainer.Config, *dockercontainer.HostConfig, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range opts.Ports {
		port, err := nat.NewPort(string(p.Proto()), p.ContainerPort.String())
		if err != nil {
			return nil, nil, err
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{HostPort: p.HostPort.String()})
	}

	binds := make([]string, 0, len(opts.Volumes))
	for _, v := range opts.Volumes {
		binds = append(binds, v.String())
	}

	cfg := &dockercontainer.Config{
		Image:        opts.Image,
		Cmd:          opts.Command,
		Env:          envList(opts.Env),
		ExposedPorts: exposed,
	}
	hostCfg := &dockercontainer.HostConfig{
		Binds:        binds,
		PortBindings: bindings,
		AutoRemove:   opts.Remove,
	}
	if opts.Init {
		initProcess := true
		hostCfg.Init = &initProcess
	}
	return cfg, hostCfg, nil
}

// displayStream renders a daemon JSON progress stream and returns the first
// error message the stream reports.
func displayStream(in io.Reader, out io.Writer) error {
	out = writerOrDiscard(out)
	var fd uintptr
	isTerminal := false
	if f, ok := out.(*os.File); ok {
		fd = f.Fd()
		isTerminal = term.IsTerminal(int(fd))
	}
	return jsonmessage.DisplayJSONMessagesStream(in, out, fd, isTerminal, nil)
}

// relativeDockerfile returns the Dockerfile path relative to the build context,
// as the API requires.
func relativeDockerfile(contextDir, dockerfile string) (string, error) {
	if dockerfile == "" || !filepath.IsAbs(dockerfile) {
		return filepath.ToSlash(dockerfile), nil
	}
	rel, err := filepath.Rel(contextDir, dockerfile)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("dockerfile %q is outside the build context %q", dockerfile, contextDir)
	}
	return filepath.ToSlash(rel), nil
}

func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		list = append(list, k+"="+env[k])
	}
	return list
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
