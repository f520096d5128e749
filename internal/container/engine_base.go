// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// psFormat is the Go template used for ps output: id, names, image, state.
const psFormat = "{{.ID}}\t{{.Names}}\t{{.Image}}\t{{.State}}"

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats a volume mount for the -v flag.
	// Podman uses it to add SELinux labels.
	VolumeFormatFunc func(volume VolumeMount) string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the shared implementation of CLI-based engines.
	// DockerEngine and PodmanEngine embed it and override only what differs:
	// Name, Available, Version, and ImageExists.
	BaseCLIEngine struct {
		name            string
		binaryPath      string
		execCommand     ExecCommandFunc
		volumeFormatter VolumeFormatFunc
	}
)

// WithName sets the engine name used in error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithBinaryPath overrides the binary resolved from PATH.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:      binaryPath,
		execCommand:     exec.CommandContext,
		volumeFormatter: VolumeMount.String,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for a build command.
//
// Generated command: <binary> build [options] <context>
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build"}

	if opts.Dockerfile != "" {
		dockerfilePath := opts.Dockerfile
		if !filepath.IsAbs(dockerfilePath) && opts.ContextDir != "" {
			dockerfilePath = filepath.Join(opts.ContextDir, dockerfilePath)
		}
		args = append(args, "-f", dockerfilePath)
	}

	args = append(args, "-t", opts.Tag)

	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if opts.Pull {
		args = append(args, "--pull")
	}

	// Sorted so the generated command is stable.
	for _, k := range slices.Sorted(maps.Keys(opts.Labels)) {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}
	for _, k := range slices.Sorted(maps.Keys(opts.BuildArgs)) {
		args = append(args, "--build-arg", k+"="+opts.BuildArgs[k])
	}

	return append(args, opts.ContextDir)
}

// RunArgs constructs arguments for a run command.
//
// Generated command: <binary> run [options] <image> [command...]
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Detach {
		args = append(args, "-d")
	}
	if opts.Init {
		args = append(args, "--init")
	}
	if opts.Remove {
		args = append(args, "--rm")
	}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	for _, p := range opts.Ports {
		args = append(args, "-p", p.String())
	}
	for _, v := range opts.Volumes {
		args = append(args, "-v", e.volumeFormatter(v))
	}
	for _, k := range slices.Sorted(maps.Keys(opts.Env)) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}

	args = append(args, opts.Image)
	return append(args, opts.Command...)
}

// ExecArgs constructs arguments for an exec command.
//
// Generated command: <binary> exec [options] <container> <command...>
func (e *BaseCLIEngine) ExecArgs(nameOrID string, command []string, opts ExecOptions) []string {
	args := []string{"exec"}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	for _, k := range slices.Sorted(maps.Keys(opts.Env)) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}

	args = append(args, nameOrID)
	return append(args, command...)
}

// PsArgs constructs arguments listing running containers matching a name filter.
func (e *BaseCLIEngine) PsArgs(nameFilter string) []string {
	args := []string{"ps", "--no-trunc", "--format", psFormat}
	if nameFilter != "" {
		args = append(args, "--filter", "name="+nameFilter)
	}
	return args
}

// RemoveImageArgs constructs arguments for an image remove command.
func (e *BaseCLIEngine) RemoveImageArgs(image string, force bool) []string {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	return append(args, image)
}

// --- Command Execution ---

// CreateCommand creates an exec.Cmd for the given arguments.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := runCapturingStderr(cmd); err != nil {
		return "", err
	}
	return out.String(), nil
}

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	return runCapturingStderr(e.CreateCommand(ctx, args...))
}

// --- Engine Methods (shared by Docker and Podman) ---

// Build builds an image from a Dockerfile.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	cmd := e.CreateCommand(ctx, e.BuildArgs(opts)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	if err := runCapturingStderr(cmd); err != nil {
		return newEngineError(e.name, "build", opts.Tag, err)
	}
	return nil
}

// RemoveImage removes an image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image string, force bool) error {
	if err := e.RunCommandStatus(ctx, e.RemoveImageArgs(image, force)...); err != nil {
		return newEngineError(e.name, "remove image", image, err)
	}
	return nil
}

// TagImage adds target as an additional tag of source.
func (e *BaseCLIEngine) TagImage(ctx context.Context, source, target string) error {
	if err := e.RunCommandStatus(ctx, "tag", source, target); err != nil {
		return newEngineError(e.name, "tag image", source+" as "+target, err)
	}
	return nil
}

// PushImage pushes an image, streaming progress to out.
func (e *BaseCLIEngine) PushImage(ctx context.Context, image string, out io.Writer) error {
	cmd := e.CreateCommand(ctx, "push", image)
	cmd.Stdout = out
	if err := runCapturingStderr(cmd); err != nil {
		return newEngineError(e.name, "push", image, err)
	}
	return nil
}

// Run creates and starts a container. Detached runs return the container ID;
// attached runs return the exit code, and a non-zero exit is not an error.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cmd := e.CreateCommand(ctx, e.RunArgs(opts)...)
	var idOut bytes.Buffer
	if opts.Detach {
		cmd.Stdout = &idOut
	} else {
		cmd.Stdout = opts.Stdout
	}
	cmd.Stderr = opts.Stderr

	err := runCapturingStderr(cmd)
	if err != nil && (opts.Detach || ctx.Err() != nil) {
		return nil, newEngineError(e.name, "run", opts.Image, err)
	}
	result := &RunResult{ContainerID: strings.TrimSpace(idOut.String())}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, newEngineError(e.name, "run", opts.Image, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

// ListRunning returns running containers matching nameFilter.
func (e *BaseCLIEngine) ListRunning(ctx context.Context, nameFilter string) ([]ContainerInfo, error) {
	out, err := e.RunCommandWithOutput(ctx, e.PsArgs(nameFilter)...)
	if err != nil {
		return nil, newEngineError(e.name, "list containers", nameFilter, err)
	}
	return parsePsOutput(out), nil
}

// Stop stops a running container.
func (e *BaseCLIEngine) Stop(ctx context.Context, nameOrID string) error {
	if err := e.RunCommandStatus(ctx, "stop", nameOrID); err != nil {
		return newEngineError(e.name, "stop", nameOrID, err)
	}
	return nil
}

// PruneStopped removes all stopped containers.
func (e *BaseCLIEngine) PruneStopped(ctx context.Context) error {
	if err := e.RunCommandStatus(ctx, "container", "prune", "-f"); err != nil {
		return newEngineError(e.name, "prune containers", "", err)
	}
	return nil
}

// Exec runs a command in a running container. A non-zero exit is reported in
// RunResult.ExitCode, not as an error.
func (e *BaseCLIEngine) Exec(ctx context.Context, nameOrID string, command []string, opts ExecOptions) (*RunResult, error) {
	cmd := e.CreateCommand(ctx, e.ExecArgs(nameOrID, command, opts)...)
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	result := &RunResult{ContainerID: nameOrID}
	err := runCapturingStderr(cmd)
	if err == nil {
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return nil, newEngineError(e.name, "exec", nameOrID, err)
}

// runCapturingStderr runs cmd and appends the tail of its stderr to the error.
// The caller's stderr writer, if any, still receives the full stream.
func runCapturingStderr(cmd *exec.Cmd) error {
	var captured bytes.Buffer
	if cmd.Stderr != nil {
		cmd.Stderr = io.MultiWriter(cmd.Stderr, &captured)
	} else {
		cmd.Stderr = &captured
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if msg := lastLine(captured.String()); msg != "" {
		return &commandError{cause: err, stderr: msg}
	}
	return err
}

// commandError carries the last stderr line of a failed CLI command.
type commandError struct {
	cause  error
	stderr string
}

func (e *commandError) Error() string { return fmt.Sprintf("%v: %s", e.cause, e.stderr) }

func (e *commandError) Unwrap() error { return e.cause }

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// parsePsOutput parses lines produced with psFormat.
func parsePsOutput(out string) []ContainerInfo {
	var infos []ContainerInfo
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		info := ContainerInfo{ID: fields[0]}
		if len(fields) > 1 {
			info.Names = strings.Split(fields[1], ",")
		}
		if len(fields) > 2 {
			info.Image = fields[2]
		}
		if len(fields) > 3 {
			info.State = fields[3]
		}
		infos = append(infos, info)
	}
	return infos
}
