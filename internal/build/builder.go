// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/naming"
	"github.com/gigantum/gtm/internal/prompt"
)

// ErrUserAborted is returned when the user declines to rebuild an existing image.
var ErrUserAborted = errors.New("user aborted build due to duplicate image name")

type (
	// StatusRecorder stores the build status of an image tag.
	StatusRecorder interface {
		RecordStatus(tag naming.ImageTag, built, published bool) error
	}

	// DiscardStatus is a StatusRecorder that keeps nothing. Images that are
	// never published go through it so the tracking file lists only publishable tags.
	DiscardStatus struct{}

	// Options control a single Build call.
	Options struct {
		// Verbose streams engine and hook output to Output.
		Verbose bool
		// Output receives streamed output when Verbose is set. Nil means io.Discard.
		Output io.Writer
		// NoCache disables the engine build cache.
		NoCache bool
		// Pull asks the engine to pull newer base images.
		Pull bool
		// Timeout bounds each engine call and hook. Zero means no limit.
		Timeout time.Duration
	}

	// Result is the outcome for one target.
	Result struct {
		Target Target
		Tag    naming.ImageTag
		State  State
		Err    error
	}

	// TargetError wraps the failure of one target in a batch.
	TargetError struct {
		Target string
		Tag    naming.ImageTag
		Cause  error
	}

	// Builder builds images for one component.
	Builder struct {
		engine    container.Engine
		targets   TargetSource
		nameFor   ImageNameStrategy
		recorder  StatusRecorder
		confirmer prompt.Confirmer
		logger    *log.Logger
		observer  Observer

		dockerfile string
		labels     map[string]string
		buildArgs  map[string]string
		extraTags  []string
		preBuild   []Hook
	}

	// Option configures a Builder.
	Option func(*Builder)

	// run tracks one target through its states.
	run struct {
		b      *Builder
		result Result
		index  int
		total  int
	}
)

// Error implements the error interface.
func (e *TargetError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("build %s (%s): %v", e.Target, e.Tag, e.Cause)
	}
	return fmt.Sprintf("build %s: %v", e.Target, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TargetError) Unwrap() error { return e.Cause }

// WithConfirmer sets the rebuild confirmation prompt. Without it every
// rebuild is confirmed.
func WithConfirmer(c prompt.Confirmer) Option {
	return func(b *Builder) { b.confirmer = c }
}

// WithLogger sets the logger for state transitions and engine activity.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithObserver registers a callback for every state transition.
func WithObserver(o Observer) Option {
	return func(b *Builder) { b.observer = o }
}

// WithDockerfile selects a Dockerfile other than <context>/Dockerfile.
func WithDockerfile(name string) Option {
	return func(b *Builder) { b.dockerfile = name }
}

// WithLabels sets image labels.
func WithLabels(labels map[string]string) Option {
	return func(b *Builder) { b.labels = labels }
}

// WithBuildArgs sets build-time variables.
func WithBuildArgs(args map[string]string) Option {
	return func(b *Builder) { b.buildArgs = args }
}

// WithExtraTags adds tags applied to every successfully built image.
func WithExtraTags(tags ...string) Option {
	return func(b *Builder) { b.extraTags = append(b.extraTags, tags...) }
}

// WithPreBuild adds hooks that run before each engine build, in order.
func WithPreBuild(hooks ...Hook) Option {
	return func(b *Builder) { b.preBuild = append(b.preBuild, hooks...) }
}

// RecordStatus implements StatusRecorder.
func (DiscardStatus) RecordStatus(naming.ImageTag, bool, bool) error { return nil }

// NewBuilder creates a Builder. engine, targets, nameFor and recorder are required.
func NewBuilder(engine container.Engine, targets TargetSource, nameFor ImageNameStrategy, recorder StatusRecorder, opts ...Option) *Builder {
	b := &Builder{
		engine:    engine,
		targets:   targets,
		nameFor:   nameFor,
		recorder:  recorder,
		confirmer: prompt.AlwaysYes{},
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build builds targetName, or every target of the source when targetName is empty.
//
// Targets are built sequentially. A failed target is reported in its Result and
// the batch continues; the failures are joined into the returned error. Declining
// a rebuild returns ErrUserAborted immediately, as does cancellation of ctx.
func (b *Builder) Build(ctx context.Context, targetName string, opts Options) ([]Result, error) {
	targets, err := b.targets.Resolve(targetName)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(targets))
	var errs []error
	for i, target := range targets {
		r := &run{b: b, index: i + 1, total: len(targets), result: Result{Target: target, State: StateIdle}}
		err := r.execute(ctx, opts)
		results = append(results, r.result)
		if err == nil {
			continue
		}

		errs = append(errs, &TargetError{Target: target.Name, Tag: r.result.Tag, Cause: err})
		if errors.Is(err, ErrUserAborted) || ctx.Err() != nil {
			break
		}
	}
	return results, errors.Join(errs...)
}

func (r *run) execute(ctx context.Context, opts Options) error {
	b := r.b
	out := io.Discard
	if opts.Verbose && opts.Output != nil {
		out = opts.Output
	}

	r.transition(StateCheckingExistence, nil)
	tag, err := b.nameFor(ctx, r.result.Target)
	if err != nil {
		return r.fail(err)
	}
	r.result.Tag = tag

	exists, err := callWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (bool, error) {
		return b.engine.ImageExists(ctx, tag.String())
	})
	if err != nil {
		return r.fail(err)
	}

	if exists {
		r.transition(StateConfirmOverwrite, nil)
		ok, err := b.confirmer.Confirm(ctx, fmt.Sprintf("Image `%s` already exists. Do you wish to rebuild it?", tag))
		if err != nil {
			return r.fail(err)
		}
		if !ok {
			return r.fail(ErrUserAborted)
		}
		if _, err := callWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, b.engine.RemoveImage(ctx, tag.String(), false)
		}); err != nil {
			return r.fail(err)
		}
	}

	r.transition(StateBuilding, nil)
	for _, hook := range b.preBuild {
		if _, err := callWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, hook(ctx, r.result.Target, out)
		}); err != nil {
			return r.fail(fmt.Errorf("pre-build: %w", err))
		}
	}

	buildOpts := container.BuildOptions{
		ContextDir: r.result.Target.Dir,
		Dockerfile: b.dockerfile,
		Tag:        tag.String(),
		BuildArgs:  b.buildArgs,
		Labels:     b.labels,
		NoCache:    opts.NoCache,
		Pull:       opts.Pull,
		Stdout:     out,
		Stderr:     out,
	}
	b.logger.Debug("building image", "target", r.result.Target.Name, "tag", tag, "context", buildOpts.ContextDir)
	if _, err := callWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.engine.Build(ctx, buildOpts)
	}); err != nil {
		return r.fail(err)
	}

	for _, extra := range b.extraTags {
		if _, err := callWithTimeout(ctx, opts.Timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, b.engine.TagImage(ctx, tag.String(), extra)
		}); err != nil {
			return r.fail(err)
		}
	}

	r.transition(StateTracking, nil)
	if err := b.recorder.RecordStatus(tag, true, false); err != nil {
		return r.fail(err)
	}

	r.transition(StateDone, nil)
	return nil
}

func (r *run) fail(err error) error {
	r.result.Err = err
	r.transition(StateFailed, err)
	return err
}

func (r *run) transition(to State, err error) {
	from := r.result.State
	r.result.State = to

	fields := []any{"target", r.result.Target.Name, "from", from, "to", to}
	if r.result.Tag != "" {
		fields = append(fields, "tag", r.result.Tag)
	}
	if err != nil {
		fields = append(fields, "error", err)
	}
	r.b.logger.Debug("build state", fields...)

	if r.b.observer != nil {
		r.b.observer(Transition{
			Index:  r.index,
			Total:  r.total,
			Target: r.result.Target,
			Tag:    r.result.Tag,
			From:   from,
			To:     to,
			Err:    err,
		})
	}
}

// callWithTimeout runs fn under a child context bounded by timeout, if any.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
