// SPDX-License-Identifier: MPL-2.0

package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoTargets is returned when a directory source contains no build directories.
	ErrNoTargets = errors.New("no images to build")

	// ErrTargetNotFound is the sentinel error wrapped by TargetNotFoundError.
	ErrTargetNotFound = errors.New("build target not found")
)

type (
	// Target is one buildable unit: a directory holding a Dockerfile.
	Target struct {
		// Name identifies the target, usually the directory's base name.
		Name string
		// Dir is the build context directory.
		Dir string
	}

	// TargetSource resolves the targets of a build. An empty targetName selects
	// every target the source knows about.
	TargetSource interface {
		Resolve(targetName string) ([]Target, error)
	}

	// DirectoryTargets treats every subdirectory of Root as a target.
	DirectoryTargets struct {
		Root string
	}

	// SingleTarget always resolves to the same target and ignores the requested name.
	SingleTarget struct {
		Target Target
	}

	// TargetNotFoundError is returned when a named target does not exist.
	TargetNotFoundError struct {
		Name string
		Root string
	}
)

// Error implements the error interface.
func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("image `%s` not found in %s", e.Name, e.Root)
}

// Unwrap returns ErrTargetNotFound so callers can use errors.Is for programmatic detection.
func (e *TargetNotFoundError) Unwrap() error { return ErrTargetNotFound }

// Resolve returns <Root>/<targetName> when named, otherwise every subdirectory
// of Root sorted by name.
func (d DirectoryTargets) Resolve(targetName string) ([]Target, error) {
	if targetName != "" {
		dir := filepath.Join(d.Root, targetName)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() || filepath.Base(dir) != targetName || strings.HasPrefix(targetName, ".") {
			return nil, &TargetNotFoundError{Name: targetName, Root: d.Root}
		}
		return []Target{{Name: targetName, Dir: dir}}, nil
	}

	entries, err := os.ReadDir(d.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoTargets, d.Root)
		}
		return nil, fmt.Errorf("read build root %s: %w", d.Root, err)
	}

	// os.ReadDir returns entries sorted by file name. Hidden directories such
	// as .git are never targets.
	var targets []Target
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		targets = append(targets, Target{Name: entry.Name(), Dir: filepath.Join(d.Root, entry.Name())})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTargets, d.Root)
	}

	return targets, nil
}

// Resolve returns the fixed target.
func (s SingleTarget) Resolve(string) ([]Target, error) {
	return []Target{s.Target}, nil
}
