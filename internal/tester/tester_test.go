// SPDX-License-Identifier: MPL-2.0

package tester

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/testutil/enginetest"
)

func TestTest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		running   []string
		exitCode  int
		wantErr   error
		wantExecs int
	}{
		{name: "passes", running: []string{"labmanager-abc"}, wantExecs: 1},
		{name: "fails", running: []string{"labmanager-abc"}, exitCode: 1, wantErr: ErrTestFailure, wantExecs: 1},
		{name: "missing", wantErr: ErrContainerNotFound},
		{name: "partial name only", running: []string{"labmanager-abc-2"}, wantErr: ErrContainerNotFound},
		{name: "duplicate", running: []string{"labmanager-abc", "labmanager-abc"}, wantErr: ErrContainerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := enginetest.New().WithRunning(tt.running...)
			engine.ExecExitCode = tt.exitCode

			err := New(engine, nil, nil, nil).Test(context.Background(), "labmanager-abc")
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := engine.Count("Exec"); got != tt.wantExecs {
				t.Errorf("Exec calls = %d, want %d", got, tt.wantExecs)
			}
		})
	}
}

func TestTest_CommandAndOutput(t *testing.T) {
	t.Parallel()

	engine := enginetest.New().WithRunning("lm")
	engine.ExecOutput = "12 passed\n"
	var out bytes.Buffer

	if err := New(engine, nil, &out, nil).Test(context.Background(), "lm"); err != nil {
		t.Fatal(err)
	}

	calls := engine.Calls()
	exec := calls[len(calls)-1]
	want := []string{"c0001", "sh", "-c", "cd /opt && py.test"}
	if len(exec.Args) != len(want) {
		t.Fatalf("exec args = %v", exec.Args)
	}
	for i := range want {
		if exec.Args[i] != want[i] {
			t.Errorf("exec arg %d = %q, want %q", i, exec.Args[i], want[i])
		}
	}
	if out.String() != "12 passed\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestTest_ExitCodeReported(t *testing.T) {
	t.Parallel()

	engine := enginetest.New().WithRunning("lm")
	engine.ExecExitCode = 3

	err := New(engine, []string{"pytest", "-x"}, nil, nil).Test(context.Background(), "lm")
	var failure *TestFailureError
	if !errors.As(err, &failure) || failure.ExitCode != 3 {
		t.Fatalf("expected TestFailureError{ExitCode: 3}, got %v", err)
	}
}

func TestTest_EngineError(t *testing.T) {
	t.Parallel()

	engine := enginetest.New().WithRunning("lm")
	engine.FailOn["Exec"] = errors.New("container is paused")

	err := New(engine, nil, nil, nil).Test(context.Background(), "lm")
	if !errors.Is(err, container.ErrEngine) {
		t.Fatalf("expected engine error, got %v", err)
	}
}
