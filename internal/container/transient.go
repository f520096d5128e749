// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

const (
	// FailureUnknown is any engine failure without a recognized signature.
	FailureUnknown FailureKind = iota
	// FailureCanceled means the caller cancelled or timed out the operation.
	FailureCanceled
	// FailureDaemonUnreachable means the engine binary ran but the daemon did not answer.
	FailureDaemonUnreachable
	// FailurePermissionDenied means the user may not talk to the engine socket.
	FailurePermissionDenied
	// FailureTransient covers network and storage hiccups that usually pass on a rerun.
	FailureTransient
	// FailureAuth means the registry rejected the push credentials.
	FailureAuth
)

// FailureKind classifies an engine failure for user-facing hints.
// gtm never retries on its own; the kind only selects the advice shown.
type FailureKind int

// ClassifyFailure inspects an engine error and returns its kind.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureCanceled
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "Cannot connect to the Docker daemon"),
		strings.Contains(errStr, "Is the docker daemon running"),
		strings.Contains(errStr, "unable to connect to Podman socket"):
		return FailureDaemonUnreachable
	case strings.Contains(errStr, "permission denied while trying to connect"),
		strings.Contains(errStr, "Got permission denied"):
		return FailurePermissionDenied
	case strings.Contains(errStr, "denied: requested access to the resource is denied"),
		strings.Contains(errStr, "unauthorized: authentication required"),
		strings.Contains(errStr, "no basic auth credentials"):
		return FailureAuth
	}

	// Exit code 125 is a generic engine failure, usually storage or cgroup trouble.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 125 {
		return FailureTransient
	}

	if strings.Contains(errStr, "Temporary failure resolving") ||
		strings.Contains(errStr, "Could not resolve host") ||
		strings.Contains(errStr, "connection timed out") ||
		strings.Contains(errStr, "TLS handshake timeout") ||
		strings.Contains(errStr, "error creating overlay mount") ||
		strings.Contains(errStr, "error mounting layer") {
		return FailureTransient
	}

	return FailureUnknown
}

// String returns a short name for the kind.
func (k FailureKind) String() string {
	switch k {
	case FailureCanceled:
		return "canceled"
	case FailureDaemonUnreachable:
		return "daemon unreachable"
	case FailurePermissionDenied:
		return "permission denied"
	case FailureTransient:
		return "transient"
	case FailureAuth:
		return "registry auth"
	default:
		return "unknown"
	}
}
