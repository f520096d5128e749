// SPDX-License-Identifier: MPL-2.0

// Package vcs reads source-control metadata used to derive image names and tags.
package vcs

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
)

// ErrMetadataUnavailable is the sentinel error wrapped by MetadataUnavailableError.
var ErrMetadataUnavailable = errors.New("source-control metadata unavailable")

type (
	// Provider resolves the current commit of a repository.
	Provider interface {
		CurrentCommitHash(ctx context.Context, repoRoot string) (string, error)
	}

	// MetadataUnavailableError is returned when the commit hash cannot be read.
	MetadataUnavailableError struct {
		RepoRoot string
		Cause    error
	}

	// GitProvider reads HEAD through go-git, so no git binary is required.
	GitProvider struct{}

	// StaticProvider always returns Hash. Used when the commit is supplied
	// externally (e.g., GTM_COMMIT in CI) and in tests.
	StaticProvider struct {
		Hash string
	}
)

// Error implements the error interface.
func (e *MetadataUnavailableError) Error() string {
	return fmt.Sprintf("cannot read commit hash of %s: %v", e.RepoRoot, e.Cause)
}

// Unwrap returns ErrMetadataUnavailable for errors.Is() compatibility.
func (e *MetadataUnavailableError) Unwrap() error { return ErrMetadataUnavailable }

// NewGitProvider creates a go-git backed provider.
func NewGitProvider() *GitProvider {
	return &GitProvider{}
}

// CurrentCommitHash returns the full hex hash of HEAD. repoRoot may be any
// directory inside the work tree; parent directories are searched for .git.
func (p *GitProvider) CurrentCommitHash(ctx context.Context, repoRoot string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &MetadataUnavailableError{RepoRoot: repoRoot, Cause: err}
	}

	repo, err := git.PlainOpenWithOptions(repoRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", &MetadataUnavailableError{RepoRoot: repoRoot, Cause: err}
	}

	head, err := repo.Head()
	if err != nil {
		return "", &MetadataUnavailableError{RepoRoot: repoRoot, Cause: err}
	}

	return head.Hash().String(), nil
}

// CurrentCommitHash returns the configured hash, or MetadataUnavailableError when empty.
func (p StaticProvider) CurrentCommitHash(_ context.Context, repoRoot string) (string, error) {
	if p.Hash == "" {
		return "", &MetadataUnavailableError{RepoRoot: repoRoot, Cause: errors.New("no commit hash configured")}
	}
	return p.Hash, nil
}
