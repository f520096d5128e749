// SPDX-License-Identifier: MPL-2.0

// Package tester runs the labmanager unit tests inside a running container.
package tester

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/naming"
)

// DefaultCommand runs the labmanager test suite.
var DefaultCommand = []string{"sh", "-c", "cd /opt && py.test"}

var (
	// ErrContainerNotFound is the sentinel error wrapped by ContainerNotFoundError.
	ErrContainerNotFound = errors.New("container not found")

	// ErrTestFailure is the sentinel error wrapped by TestFailureError.
	ErrTestFailure = errors.New("container tests failed")
)

type (
	// ContainerNotFoundError is returned when not exactly one running container has the name.
	ContainerNotFoundError struct {
		Name    string
		Matches int
	}

	// TestFailureError is returned when the test command exits non-zero.
	TestFailureError struct {
		Name     string
		ExitCode int
	}

	// Tester executes a test command in a named container.
	Tester struct {
		engine  container.Engine
		command []string
		stdout  io.Writer
		stderr  io.Writer
	}
)

// Error implements the error interface.
func (e *ContainerNotFoundError) Error() string {
	return fmt.Sprintf("container by name `%s` not found (%d running matches)", e.Name, e.Matches)
}

// Unwrap returns ErrContainerNotFound for errors.Is() compatibility.
func (e *ContainerNotFoundError) Unwrap() error { return ErrContainerNotFound }

// Error implements the error interface.
func (e *TestFailureError) Error() string {
	return fmt.Sprintf("tests in %s failed with exit code %d", e.Name, e.ExitCode)
}

// Unwrap returns ErrTestFailure for errors.Is() compatibility.
func (e *TestFailureError) Unwrap() error { return ErrTestFailure }

// New creates a Tester that streams command output to stdout and stderr.
// An empty command selects DefaultCommand.
func New(engine container.Engine, command []string, stdout, stderr io.Writer) *Tester {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &Tester{engine: engine, command: command, stdout: stdout, stderr: stderr}
}

// Test runs the test command in the container named name.
func (t *Tester) Test(ctx context.Context, name naming.ContainerName) error {
	candidates, err := t.engine.ListRunning(ctx, name.String())
	if err != nil {
		return err
	}

	var target *container.ContainerInfo
	matches := 0
	for i := range candidates {
		if candidates[i].HasName(name.String()) {
			matches++
			target = &candidates[i]
		}
	}
	if matches != 1 {
		return &ContainerNotFoundError{Name: name.String(), Matches: matches}
	}

	result, err := t.engine.Exec(ctx, target.ID, t.command, container.ExecOptions{
		Stdout: t.stdout,
		Stderr: t.stderr,
	})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &TestFailureError{Name: name.String(), ExitCode: result.ExitCode}
	}
	return nil
}
