// SPDX-License-Identifier: MPL-2.0

//go:build linux

package tracker

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// errFlockUnavailable is defined for parity with lock_other.go. On Linux,
// acquireFileLock never returns it.
var errFlockUnavailable = errors.New("flock not available on this platform")

// fileLock holds a blocking exclusive flock on the tracker's sidecar lock file.
// The kernel drops the lock when the descriptor closes, including on crash,
// so an orphaned zero-byte lock file is harmless.
type fileLock struct {
	file *os.File
}

// acquireFileLock opens (or creates) the lock file and blocks until the
// exclusive flock is granted.
func acquireFileLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return &fileLock{file: f}, nil
}

// Release unlocks and closes the lock file. Safe on a nil or released lock.
func (l *fileLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN) // Close releases it anyway
	_ = l.file.Close()
	l.file = nil
}
