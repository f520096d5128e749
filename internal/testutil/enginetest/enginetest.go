// SPDX-License-Identifier: MPL-2.0

// Package enginetest provides an in-memory container.Engine for tests of the
// build, publish, runner and tester flows.
package enginetest

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/gigantum/gtm/internal/container"
)

type (
	// Call records one engine method invocation.
	Call struct {
		Method string
		Args   []string
	}

	// FakeEngine keeps images and containers in memory and records every call.
	// Errors set in FailOn are returned by the named method, wrapped as a
	// *container.EngineError, before any state changes.
	FakeEngine struct {
		mu sync.Mutex

		// Images is the set of local image tags.
		Images map[string]bool
		// Running lists running containers.
		Running []container.ContainerInfo
		// Stopped lists stopped containers awaiting prune.
		Stopped []container.ContainerInfo
		// FailOn maps a method name (e.g. "Build", "PushImage") to the error it returns.
		FailOn map[string]error
		// BuildOutput is written to BuildOptions.Stdout on each build.
		BuildOutput string
		// RunExitCode is the exit code attached runs report.
		RunExitCode int
		// ExecExitCode is the exit code Exec reports.
		ExecExitCode int
		// ExecOutput is written to ExecOptions.Stdout.
		ExecOutput string

		calls []Call
		seq   int
	}
)

var _ container.Engine = (*FakeEngine)(nil)

// New returns an empty FakeEngine.
func New() *FakeEngine {
	return &FakeEngine{Images: map[string]bool{}, FailOn: map[string]error{}}
}

// WithImages marks tags as present locally.
func (f *FakeEngine) WithImages(tags ...string) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tag := range tags {
		f.Images[tag] = true
	}
	return f
}

// WithRunning adds running containers with the given names.
func (f *FakeEngine) WithRunning(names ...string) *FakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		f.seq++
		f.Running = append(f.Running, container.ContainerInfo{
			ID:    fmt.Sprintf("c%04d", f.seq),
			Names: []string{name},
			State: "running",
		})
	}
	return f
}

// Calls returns a copy of the recorded calls.
func (f *FakeEngine) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Count returns how many times method was called.
func (f *FakeEngine) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Methods returns the recorded method names in call order.
func (f *FakeEngine) Methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		names[i] = c.Method
	}
	return names
}

// HasImage reports whether tag is present locally.
func (f *FakeEngine) HasImage(tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Images[tag]
}

// Name returns "fake".
func (f *FakeEngine) Name() string { return "fake" }

// Available always reports true.
func (f *FakeEngine) Available() bool { return true }

// Version returns a fixed version.
func (f *FakeEngine) Version(ctx context.Context) (string, error) {
	if err := f.enter(ctx, "Version"); err != nil {
		return "", err
	}
	return "0.0.0-fake", nil
}

// ImageExists reports whether tag is in Images.
func (f *FakeEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	if err := f.enter(ctx, "ImageExists", image); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Images[image], nil
}

// Build adds opts.Tag to Images after writing BuildOutput.
func (f *FakeEngine) Build(ctx context.Context, opts container.BuildOptions) error {
	args := []string{opts.Tag, opts.ContextDir, opts.Dockerfile}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if err := f.enter(ctx, "Build", args...); err != nil {
		return err
	}
	if opts.Stdout != nil && f.BuildOutput != "" {
		_, _ = io.WriteString(opts.Stdout, f.BuildOutput)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Images[opts.Tag] = true
	return nil
}

// RemoveImage deletes image from Images.
func (f *FakeEngine) RemoveImage(ctx context.Context, image string, _ bool) error {
	if err := f.enter(ctx, "RemoveImage", image); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Images, image)
	return nil
}

// TagImage adds target to Images.
func (f *FakeEngine) TagImage(ctx context.Context, source, target string) error {
	if err := f.enter(ctx, "TagImage", source, target); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Images[target] = true
	return nil
}

// PushImage records the push.
func (f *FakeEngine) PushImage(ctx context.Context, image string, out io.Writer) error {
	if err := f.enter(ctx, "PushImage", image); err != nil {
		return err
	}
	if out != nil {
		_, _ = fmt.Fprintf(out, "pushed %s\n", image)
	}
	return nil
}

// Run adds a running container for detached runs and reports RunExitCode for attached ones.
func (f *FakeEngine) Run(ctx context.Context, opts container.RunOptions) (*container.RunResult, error) {
	args := []string{opts.Image, opts.Name}
	for _, p := range opts.Ports {
		args = append(args, "-p", p.String())
	}
	for _, v := range opts.Volumes {
		args = append(args, "-v", v.String())
	}
	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}
	if opts.Init {
		args = append(args, "--init")
	}
	if err := f.enter(ctx, "Run", args...); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("c%04d", f.seq)
	if !opts.Detach {
		return &container.RunResult{ContainerID: id, ExitCode: f.RunExitCode}, nil
	}
	f.Running = append(f.Running, container.ContainerInfo{
		ID:    id,
		Names: []string{opts.Name},
		Image: opts.Image,
		State: "running",
	})
	return &container.RunResult{ContainerID: id}, nil
}

// ListRunning returns running containers whose names contain nameFilter,
// mirroring the engine's partial name matching.
func (f *FakeEngine) ListRunning(ctx context.Context, nameFilter string) ([]container.ContainerInfo, error) {
	if err := f.enter(ctx, "ListRunning", nameFilter); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []container.ContainerInfo
	for _, c := range f.Running {
		for _, n := range c.Names {
			if strings.Contains(n, nameFilter) {
				matches = append(matches, c)
				break
			}
		}
	}
	return matches, nil
}

// Stop moves the container to Stopped.
func (f *FakeEngine) Stop(ctx context.Context, nameOrID string) error {
	if err := f.enter(ctx, "Stop", nameOrID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.Running {
		if c.ID == nameOrID || c.HasName(nameOrID) {
			c.State = "exited"
			f.Stopped = append(f.Stopped, c)
			f.Running = slices.Delete(f.Running, i, i+1)
			return nil
		}
	}
	return &container.EngineError{Engine: "fake", Operation: "stop", Resource: nameOrID, Cause: fmt.Errorf("no such container")}
}

// PruneStopped clears Stopped.
func (f *FakeEngine) PruneStopped(ctx context.Context) error {
	if err := f.enter(ctx, "PruneStopped"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped = nil
	return nil
}

// Exec writes ExecOutput and reports ExecExitCode.
func (f *FakeEngine) Exec(ctx context.Context, nameOrID string, command []string, opts container.ExecOptions) (*container.RunResult, error) {
	if err := f.enter(ctx, "Exec", append([]string{nameOrID}, command...)...); err != nil {
		return nil, err
	}
	if opts.Stdout != nil && f.ExecOutput != "" {
		_, _ = io.WriteString(opts.Stdout, f.ExecOutput)
	}
	return &container.RunResult{ContainerID: nameOrID, ExitCode: f.ExecExitCode}, nil
}

// enter records the call and returns the configured or context failure.
func (f *FakeEngine) enter(ctx context.Context, method string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Args: args})
	failure := f.FailOn[method]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &container.EngineError{Engine: "fake", Operation: method, Cause: err}
	}
	if failure != nil {
		return &container.EngineError{Engine: "fake", Operation: method, Cause: failure}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
