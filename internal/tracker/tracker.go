// SPDX-License-Identifier: MPL-2.0

package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gigantum/gtm/internal/naming"
)

// DefaultFileName is the tracking file name inside the gtm root.
const DefaultFileName = ".image-build-status.json"

var (
	// ErrCorruptState is the sentinel error wrapped by CorruptStateError.
	ErrCorruptState = errors.New("corrupt tracking file")

	// ErrNotFound is the sentinel error wrapped by NotFoundError.
	ErrNotFound = errors.New("image tag not tracked")

	// processMu serializes tracker writes inside one process. The file lock covers
	// other processes on Linux; elsewhere it is the only serialization available.
	processMu sync.Mutex
)

type (
	// CorruptStateError is returned when the tracking file exists but cannot be decoded.
	CorruptStateError struct {
		Path  string
		Cause error
	}

	// NotFoundError is returned when a tag is absent from the tracking record.
	NotFoundError struct {
		Tag naming.ImageTag
	}

	// Tracker persists build and publish status per image tag in a JSON file.
	// Every read loads the file fresh and every write is a full atomic rewrite.
	Tracker struct {
		path string
	}
)

// Error implements the error interface.
func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("tracking file %s is corrupt: %v", e.Path, e.Cause)
}

// Unwrap returns ErrCorruptState so callers can use errors.Is for programmatic detection.
func (e *CorruptStateError) Unwrap() error { return ErrCorruptState }

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("image %q not found in tracking file", e.Tag)
}

// Unwrap returns ErrNotFound so callers can use errors.Is for programmatic detection.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// New returns a tracker backed by the file at path.
func New(path string) *Tracker {
	return &Tracker{path: path}
}

// Path returns the tracking file path.
func (t *Tracker) Path() string { return t.path }

// Exists reports whether the tracking file has been created.
func (t *Tracker) Exists() bool {
	info, err := os.Stat(t.path)
	return err == nil && !info.IsDir()
}

// Load reads the tracking file. A missing file yields an empty record.
func (t *Tracker) Load() (*Record, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewRecord(), nil
		}
		return nil, fmt.Errorf("read tracking file: %w", err)
	}

	rec := NewRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, &CorruptStateError{Path: t.path, Cause: err}
	}
	return rec, nil
}

// RecordStatus sets the status of tag and rewrites the file. The read-modify-write
// runs under an exclusive lock so concurrent gtm processes do not lose updates.
func (t *Tracker) RecordStatus(tag naming.ImageTag, built, published bool) error {
	processMu.Lock()
	defer processMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create tracking directory: %w", err)
	}

	lock, err := acquireFileLock(t.lockPath())
	if err != nil && !errors.Is(err, errFlockUnavailable) {
		return err
	}
	defer lock.Release()

	rec, err := t.Load()
	if err != nil {
		return err
	}
	rec.Set(tag, Status{Built: built, Published: published})
	return t.write(rec)
}

// AllTags returns the tracked tags in insertion order.
func (t *Tracker) AllTags() ([]naming.ImageTag, error) {
	rec, err := t.Load()
	if err != nil {
		return nil, err
	}
	return rec.Tags(), nil
}

// RecordFor returns the status of tag.
func (t *Tracker) RecordFor(tag naming.ImageTag) (Status, error) {
	rec, err := t.Load()
	if err != nil {
		return Status{}, err
	}
	s, ok := rec.Get(tag)
	if !ok {
		return Status{}, &NotFoundError{Tag: tag}
	}
	return s, nil
}

// write replaces the tracking file with rec. The data goes to a temp file in the
// same directory which is synced and renamed over the target, so a failure at any
// point leaves the previous file intact.
func (t *Tracker) write(rec *Record) (err error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode tracking record: %w", err)
	}

	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp tracking file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName) // best-effort cleanup of the partial temp file
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp tracking file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp tracking file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp tracking file: %w", err)
	}
	if err = os.Rename(tmpName, t.path); err != nil {
		return fmt.Errorf("replace tracking file: %w", err)
	}
	return nil
}

func (t *Tracker) lockPath() string {
	return t.path + ".lock"
}
