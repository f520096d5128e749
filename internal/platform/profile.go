// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// OS name constants for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

const (
	// DefaultWorkDirName is the directory under the user's home that labmanager works in.
	DefaultWorkDirName = "gigantum"

	posixDockerSocket   = "/var/run/docker.sock"
	windowsDockerSocket = "//var/run/docker.sock"
)

type (
	// Profile describes the host facts that shape container volume, port, and
	// environment mappings.
	Profile struct {
		// GOOS is the host operating system.
		GOOS string
		// UID is the numeric user id. Only meaningful when HasUID is true.
		UID int
		// HasUID is false on hosts without numeric user ids (Windows).
		HasUID bool
		// WorkDir is the host working directory, in native form.
		WorkDir string
		// DockerSocket is the engine control socket as seen by the engine.
		DockerSocket string
	}

	// detectDeps holds the OS lookups used by Detect, injectable for tests.
	detectDeps struct {
		goos    string
		getuid  func() int
		homeDir func() (string, error)
	}
)

// Detect builds the profile of the current host. workDir overrides the default
// ~/gigantum working directory when non-empty; a leading "~" is expanded.
func Detect(workDir string) (Profile, error) {
	return detectWith(detectDeps{
		goos:    runtime.GOOS,
		getuid:  os.Getuid,
		homeDir: os.UserHomeDir,
	}, workDir)
}

func detectWith(deps detectDeps, workDir string) (Profile, error) {
	p := Profile{GOOS: deps.goos}

	if deps.goos != Windows {
		p.UID = deps.getuid()
		p.HasUID = p.UID >= 0
	}

	resolved, err := expandHome(workDir, deps.homeDir)
	if err != nil {
		return Profile{}, err
	}
	p.WorkDir = resolved

	p.DockerSocket = posixDockerSocket
	if deps.goos == Windows {
		p.DockerSocket = windowsDockerSocket
	}

	return p, nil
}

// MountableWorkDir returns WorkDir rewritten for use as a bind-mount source.
func (p Profile) MountableWorkDir() string {
	return DockerizePath(p.WorkDir, p.GOOS)
}

// expandHome resolves "", "~" and "~/..." against the user's home directory.
func expandHome(path string, homeDir func() (string, error)) (string, error) {
	if path != "" && path != "~" && !hasHomePrefix(path) {
		return path, nil
	}

	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	switch {
	case path == "":
		return filepath.Join(home, DefaultWorkDirName), nil
	case path == "~":
		return home, nil
	default:
		return filepath.Join(home, path[2:]), nil
	}
}

func hasHomePrefix(path string) bool {
	return len(path) >= 2 && path[0] == '~' && (path[1] == '/' || path[1] == '\\')
}
