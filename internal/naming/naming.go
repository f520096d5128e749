// SPDX-License-Identifier: MPL-2.0

package naming

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// commitPrefixLen is the number of commit hash characters used in generated names and tags.
const commitPrefixLen = 8

var (
	// ErrFormat is the sentinel error wrapped by FormatError.
	ErrFormat = errors.New("invalid name format")

	// namePattern matches a single name segment: alphanumerics and hyphens, with no
	// leading, trailing, or doubled hyphen. The doubled-hyphen rule is checked separately
	// because RE2 has no lookahead.
	namePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]*[A-Za-z0-9])?$`)
)

type (
	// FormatError is returned when a name, tag segment, or tag suffix is malformed.
	FormatError struct {
		// Kind describes what was being validated (e.g., "image name", "container name").
		Kind  string
		Value string
	}

	// ImageTag identifies a built image as "<name>[:<suffix>]". The name may carry
	// slash-separated namespace segments (e.g., "gigdev/alpine-base").
	ImageTag string

	// ContainerName identifies a runtime container instance.
	ContainerName string
)

// Error implements the error interface.
func (e *FormatError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "name"
	}
	return fmt.Sprintf("invalid %s %q: only A-Za-z0-9- allowed with no leading, trailing, or consecutive hyphens", kind, e.Value)
}

// Unwrap returns ErrFormat so callers can use errors.Is for programmatic detection.
func (e *FormatError) Unwrap() error { return ErrFormat }

// Validate returns name unchanged if it is a well-formed name segment.
func Validate(name string) (string, error) {
	return validateAs("name", name)
}

func validateAs(kind, name string) (string, error) {
	if !namePattern.MatchString(name) || strings.Contains(name, "--") {
		return "", &FormatError{Kind: kind, Value: name}
	}
	return name, nil
}

// GenerateDefaultName returns "<prefix>-<first 8 chars of commitHash>".
// A hash shorter than eight characters is used whole.
func GenerateDefaultName(prefix, commitHash string) string {
	return prefix + "-" + CommitPrefix(commitHash)
}

// CommitPrefix returns the abbreviated commit hash used in names and tags.
func CommitPrefix(commitHash string) string {
	if len(commitHash) > commitPrefixLen {
		return commitHash[:commitPrefixLen]
	}
	return commitHash
}

// NewContainerName validates s as a container name.
func NewContainerName(s string) (ContainerName, error) {
	v, err := validateAs("container name", s)
	if err != nil {
		return "", err
	}
	return ContainerName(v), nil
}

// String returns the container name as a string.
func (n ContainerName) String() string { return string(n) }

// NewImageTag joins name and suffix into a tag and validates it.
// An empty suffix yields an untagged reference.
func NewImageTag(name, suffix string) (ImageTag, error) {
	s := name
	if suffix != "" {
		s += ":" + suffix
	}
	return ParseImageTag(s)
}

// ParseImageTag validates s as "<segment>[/<segment>...][:<suffix>]".
func ParseImageTag(s string) (ImageTag, error) {
	repo, suffix, hasSuffix := strings.Cut(s, ":")
	if repo == "" {
		return "", &FormatError{Kind: "image tag", Value: s}
	}
	for seg := range strings.SplitSeq(repo, "/") {
		if _, err := validateAs("image name", seg); err != nil {
			return "", err
		}
	}
	if hasSuffix {
		if _, err := validateAs("image tag suffix", suffix); err != nil {
			return "", err
		}
	}
	return ImageTag(s), nil
}

// Repository returns the name part of the tag without the suffix.
func (t ImageTag) Repository() string {
	repo, _, _ := strings.Cut(string(t), ":")
	return repo
}

// Suffix returns the part after ':' or "" when the tag has none.
func (t ImageTag) Suffix() string {
	_, suffix, _ := strings.Cut(string(t), ":")
	return suffix
}

// WithSuffix returns a copy of the tag carrying a different suffix.
func (t ImageTag) WithSuffix(suffix string) (ImageTag, error) {
	return NewImageTag(t.Repository(), suffix)
}

// String returns the tag as a string.
func (t ImageTag) String() string { return string(t) }
