// SPDX-License-Identifier: MPL-2.0

// Package publish pushes locally built images recorded in the build tracker
// and marks them as published.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/naming"
	"github.com/gigantum/gtm/internal/tracker"
)

// ErrNoLocalBuilds is returned when there is no tracking file to publish from.
var ErrNoLocalBuilds = errors.New("you must first build images locally before publishing")

// ErrTargetNotFound matches a narrowed publish whose tag is not tracked.
var ErrTargetNotFound = tracker.ErrNotFound

type (
	// StatusStore is the part of the build tracker the publisher needs.
	StatusStore interface {
		Exists() bool
		AllTags() ([]naming.ImageTag, error)
		RecordFor(tag naming.ImageTag) (tracker.Status, error)
		RecordStatus(tag naming.ImageTag, built, published bool) error
	}

	// Progress is called before each push with the 1-based position of tag.
	Progress func(index, total int, tag naming.ImageTag)

	// Options control a Publish call.
	Options struct {
		// Verbose streams push progress to Output.
		Verbose bool
		// Output receives streamed push progress. Nil means io.Discard.
		Output io.Writer
		// Timeout bounds each push. Zero means no limit.
		Timeout time.Duration
	}

	// Publisher pushes tracked images.
	Publisher struct {
		engine   container.Engine
		store    StatusStore
		logger   *log.Logger
		progress Progress
	}
)

// NewPublisher creates a Publisher. logger and progress may be nil.
func NewPublisher(engine container.Engine, store StatusStore, logger *log.Logger, progress Progress) *Publisher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Publisher{engine: engine, store: store, logger: logger, progress: progress}
}

// Publish pushes every tracked tag in insertion order, or only targetName when
// given, and records each as published. The first failure stops the run; tags
// pushed before it stay recorded as published.
func (p *Publisher) Publish(ctx context.Context, targetName string, opts Options) ([]naming.ImageTag, error) {
	if !p.store.Exists() {
		return nil, ErrNoLocalBuilds
	}

	tags, err := p.selectTags(targetName)
	if err != nil {
		return nil, err
	}

	out := io.Discard
	if opts.Verbose && opts.Output != nil {
		out = opts.Output
	}

	published := make([]naming.ImageTag, 0, len(tags))
	for i, tag := range tags {
		if p.progress != nil {
			p.progress(i+1, len(tags), tag)
		}
		p.logger.Debug("pushing image", "tag", tag, "engine", p.engine.Name())

		if err := p.push(ctx, tag, out, opts.Timeout); err != nil {
			return published, fmt.Errorf("publish %s: %w", tag, err)
		}
		if err := p.store.RecordStatus(tag, true, true); err != nil {
			return published, fmt.Errorf("publish %s: %w", tag, err)
		}
		published = append(published, tag)
	}
	return published, nil
}

func (p *Publisher) selectTags(targetName string) ([]naming.ImageTag, error) {
	if targetName == "" {
		return p.store.AllTags()
	}

	tag, err := naming.ParseImageTag(targetName)
	if err != nil {
		return nil, err
	}
	if _, err := p.store.RecordFor(tag); err != nil {
		return nil, err
	}
	return []naming.ImageTag{tag}, nil
}

func (p *Publisher) push(ctx context.Context, tag naming.ImageTag, out io.Writer, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.engine.PushImage(ctx, tag.String(), out)
}
