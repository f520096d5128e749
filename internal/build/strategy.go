// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"path"
	"time"

	"github.com/gigantum/gtm/internal/naming"
	"github.com/gigantum/gtm/internal/vcs"
)

// dateLayout is the UTC calendar date appended to commit-dated tags.
const dateLayout = "2006-01-02"

// ImageNameStrategy derives the tag a target is built under.
type ImageNameStrategy func(ctx context.Context, target Target) (naming.ImageTag, error)

// CommitDateTag names targets "<namespace>/<target>:<commit8>-<YYYY-MM-DD>", using
// the HEAD commit of repoRoot and the UTC date reported by now.
func CommitDateTag(namespace, repoRoot string, provider vcs.Provider, now func() time.Time) ImageNameStrategy {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, target Target) (naming.ImageTag, error) {
		hash, err := provider.CurrentCommitHash(ctx, repoRoot)
		if err != nil {
			return "", err
		}
		suffix := naming.CommitPrefix(hash) + "-" + now().UTC().Format(dateLayout)
		return naming.NewImageTag(path.Join(namespace, target.Name), suffix)
	}
}

// CommitNameTag names the image "<prefix>-<commit8>" with no suffix.
func CommitNameTag(prefix, repoRoot string, provider vcs.Provider) ImageNameStrategy {
	return func(ctx context.Context, _ Target) (naming.ImageTag, error) {
		hash, err := provider.CurrentCommitHash(ctx, repoRoot)
		if err != nil {
			return "", err
		}
		return naming.ParseImageTag(naming.GenerateDefaultName(prefix, hash))
	}
}

// CommitSuffixTag names the image "<repository>:<commit8>".
func CommitSuffixTag(repository, repoRoot string, provider vcs.Provider) ImageNameStrategy {
	return func(ctx context.Context, _ Target) (naming.ImageTag, error) {
		hash, err := provider.CurrentCommitHash(ctx, repoRoot)
		if err != nil {
			return "", err
		}
		return naming.NewImageTag(repository, naming.CommitPrefix(hash))
	}
}

// FixedTag always returns tag. Used for --override-name.
func FixedTag(tag naming.ImageTag) ImageNameStrategy {
	return func(context.Context, Target) (naming.ImageTag, error) {
		return tag, nil
	}
}
