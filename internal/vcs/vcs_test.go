// SPDX-License-Identifier: MPL-2.0

package vcs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initRepoWithCommit creates a repository with one commit and returns its hash.
func initRepoWithCommit(t *testing.T, dir string) string {
	t.Helper()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("gtm\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if _, err := wt.Add("README"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "gtm", Email: "gtm@example.com", When: time.Unix(0, 0)},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

func TestGitProvider_CurrentCommitHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := initRepoWithCommit(t, dir)

	got, err := NewGitProvider().CurrentCommitHash(context.Background(), dir)
	if err != nil {
		t.Fatalf("CurrentCommitHash() error: %v", err)
	}
	if got != want {
		t.Errorf("CurrentCommitHash() = %s, want %s", got, want)
	}
	if len(got) != 40 {
		t.Errorf("expected 40 hex chars, got %d", len(got))
	}
}

func TestGitProvider_DetectsParentRepo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	want := initRepoWithCommit(t, dir)

	sub := filepath.Join(dir, "resources", "submodules")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := NewGitProvider().CurrentCommitHash(context.Background(), sub)
	if err != nil {
		t.Fatalf("CurrentCommitHash() error: %v", err)
	}
	if got != want {
		t.Errorf("CurrentCommitHash() = %s, want %s", got, want)
	}
}

func TestGitProvider_NotARepo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewGitProvider().CurrentCommitHash(context.Background(), dir)
	if !errors.Is(err, ErrMetadataUnavailable) {
		t.Fatalf("expected ErrMetadataUnavailable, got %v", err)
	}

	var me *MetadataUnavailableError
	if !errors.As(err, &me) || me.RepoRoot != dir {
		t.Errorf("expected *MetadataUnavailableError for %s, got %v", dir, err)
	}
}

func TestGitProvider_EmptyRepo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatal(err)
	}

	if _, err := NewGitProvider().CurrentCommitHash(context.Background(), dir); !errors.Is(err, ErrMetadataUnavailable) {
		t.Errorf("expected ErrMetadataUnavailable for repo without commits, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()

	got, err := StaticProvider{Hash: "abcdef1234"}.CurrentCommitHash(context.Background(), "/x")
	if err != nil || got != "abcdef1234" {
		t.Errorf("CurrentCommitHash() = %q, %v", got, err)
	}

	if _, err := (StaticProvider{}).CurrentCommitHash(context.Background(), "/x"); !errors.Is(err, ErrMetadataUnavailable) {
		t.Errorf("expected ErrMetadataUnavailable, got %v", err)
	}
}
