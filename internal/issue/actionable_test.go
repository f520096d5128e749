// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "prune containers"}, "failed to prune containers"},
		{
			"with resource",
			&ActionableError{Operation: "load tracking file", Resource: ".image-build-status.json"},
			"failed to load tracking file: .image-build-status.json",
		},
		{
			"with cause",
			&ActionableError{Operation: "push image", Cause: errors.New("denied")},
			"failed to push image: denied",
		},
		{
			"full",
			&ActionableError{
				Operation: "build image",
				Resource:  "gigdev/alpine-base:abcdef12-2024-01-15",
				Cause:     errors.New("exit status 1"),
			},
			"failed to build image: gigdev/alpine-base:abcdef12-2024-01-15: exit status 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("daemon unreachable")
	err := fmt.Errorf("start: %w", &ActionableError{Operation: "start container", Cause: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause through ActionableError")
	}
	var ae *ActionableError
	if !errors.As(err, &ae) || ae.Operation != "start container" {
		t.Errorf("errors.As = %v", ae)
	}
	if (&ActionableError{Operation: "x"}).Unwrap() != nil {
		t.Error("Unwrap() without cause should be nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := &ActionableError{
		Operation:   "load tracking file",
		Resource:    ".image-build-status.json",
		Suggestions: []string{"Delete the file and rebuild"},
		Cause: &ActionableError{
			Operation: "parse JSON",
			Cause:     errors.New("unexpected EOF"),
		},
	}

	short := err.Format(false)
	if !strings.Contains(short, "  • Delete the file and rebuild") {
		t.Errorf("missing suggestion:\n%s", short)
	}
	if strings.Contains(short, "Error chain:") {
		t.Errorf("non-verbose output should omit the chain:\n%s", short)
	}

	long := err.Format(true)
	for _, want := range []string{
		"Error chain:",
		"1. failed to parse JSON: unexpected EOF",
		"2. unexpected EOF",
	} {
		if !strings.Contains(long, want) {
			t.Errorf("verbose output missing %q:\n%s", want, long)
		}
	}
}

func TestErrorContext(t *testing.T) {
	t.Parallel()

	t.Run("requires operation", func(t *testing.T) {
		t.Parallel()
		ctx := NewErrorContext().WithResource("gtm.yaml")
		if ctx.Build() != nil {
			t.Error("Build() without operation should be nil")
		}
		if err := ctx.BuildError(); err != nil {
			t.Errorf("BuildError() = %v, want untyped nil", err)
		}
	})

	t.Run("collects fields", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("yaml: line 3")
		ae := NewErrorContext().
			WithOperation("load config").
			WithResource("gtm.yaml").
			WithSuggestion("Check the YAML syntax").
			WithSuggestion("Run 'gtm config init'").
			Wrap(cause).
			Build()
		if ae.Operation != "load config" || ae.Resource != "gtm.yaml" {
			t.Errorf("unexpected context: %+v", ae)
		}
		if len(ae.Suggestions) != 2 {
			t.Errorf("Suggestions = %v", ae.Suggestions)
		}
		if !errors.Is(ae, cause) {
			t.Error("cause not wrapped")
		}
	})

	t.Run("reuse keeps built errors independent", func(t *testing.T) {
		t.Parallel()
		ctx := NewErrorContext().WithOperation("push image").WithSuggestion("Log in first")
		first := ctx.Wrap(errors.New("denied")).Build()
		ctx.WithSuggestion("Check the tag")
		second := ctx.Wrap(errors.New("timeout")).Build()

		if len(first.Suggestions) != 1 || len(second.Suggestions) != 2 {
			t.Errorf("suggestions leaked between builds: %v / %v", first.Suggestions, second.Suggestions)
		}
		if first.Cause.Error() == second.Cause.Error() {
			t.Error("expected distinct causes")
		}
	})
}
