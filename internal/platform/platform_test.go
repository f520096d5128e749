// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDockerizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		goos     string
		expected string
	}{
		{"windows drive path", `C:\Users\me\gigantum`, Windows, "//C/Users/me/gigantum"},
		{"windows lowercase drive", `d:\work`, Windows, "//d/work"},
		{"windows forward slashes", "C:/a/b", Windows, "//C/a/b"},
		{"windows no drive", `\\server\share`, Windows, "//server/share"},
		{"linux untouched", "/home/me/gigantum", Linux, "/home/me/gigantum"},
		{"darwin untouched", `/Users/me/with\backslash`, Darwin, `/Users/me/with\backslash`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := DockerizePath(tt.path, tt.goos); got != tt.expected {
				t.Errorf("DockerizePath(%q, %q) = %q, want %q", tt.path, tt.goos, got, tt.expected)
			}
		})
	}
}

func TestDetectWith(t *testing.T) {
	t.Parallel()

	home := func() (string, error) { return "/home/dev", nil }
	uid := func() int { return 1001 }

	t.Run("linux default work dir", func(t *testing.T) {
		t.Parallel()

		p, err := detectWith(detectDeps{goos: Linux, getuid: uid, homeDir: home}, "")
		if err != nil {
			t.Fatal(err)
		}
		if !p.HasUID || p.UID != 1001 {
			t.Errorf("expected uid 1001, got %+v", p)
		}
		if p.WorkDir != filepath.Join("/home/dev", "gigantum") {
			t.Errorf("WorkDir = %q", p.WorkDir)
		}
		if p.DockerSocket != "/var/run/docker.sock" {
			t.Errorf("DockerSocket = %q", p.DockerSocket)
		}
	})

	t.Run("tilde expansion", func(t *testing.T) {
		t.Parallel()

		p, err := detectWith(detectDeps{goos: Darwin, getuid: uid, homeDir: home}, "~/labs")
		if err != nil {
			t.Fatal(err)
		}
		if p.WorkDir != filepath.Join("/home/dev", "labs") {
			t.Errorf("WorkDir = %q", p.WorkDir)
		}
	})

	t.Run("explicit path", func(t *testing.T) {
		t.Parallel()

		p, err := detectWith(detectDeps{goos: Linux, getuid: uid, homeDir: home}, "/srv/gigantum")
		if err != nil {
			t.Fatal(err)
		}
		if p.WorkDir != "/srv/gigantum" {
			t.Errorf("WorkDir = %q", p.WorkDir)
		}
	})

	t.Run("windows has no uid", func(t *testing.T) {
		t.Parallel()

		p, err := detectWith(detectDeps{
			goos:    Windows,
			getuid:  func() int { return -1 },
			homeDir: func() (string, error) { return `C:\Users\dev`, nil },
		}, `C:\Users\dev\gigantum`)
		if err != nil {
			t.Fatal(err)
		}
		if p.HasUID {
			t.Error("expected HasUID=false on windows")
		}
		if p.MountableWorkDir() != "//C/Users/dev/gigantum" {
			t.Errorf("MountableWorkDir() = %q", p.MountableWorkDir())
		}
		if p.DockerSocket != "//var/run/docker.sock" {
			t.Errorf("DockerSocket = %q", p.DockerSocket)
		}
	})

	t.Run("home lookup failure", func(t *testing.T) {
		t.Parallel()

		_, err := detectWith(detectDeps{
			goos:    Linux,
			getuid:  uid,
			homeDir: func() (string, error) { return "", errors.New("no home") },
		}, "")
		if err == nil {
			t.Error("expected error when home directory is unavailable")
		}
	})
}
