// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package tracker

import "errors"

// errFlockUnavailable is returned on platforms without flock. RecordStatus then
// relies on the in-process mutex alone.
var errFlockUnavailable = errors.New("flock not available on this platform")

// acquireFileLock is a stub on non-Linux platforms.
func acquireFileLock(string) (*fileLock, error) {
	return nil, errFlockUnavailable
}

// fileLock is the non-Linux stub. Release is a no-op.
type fileLock struct{}

// Release is a no-op on non-Linux platforms.
func (l *fileLock) Release() {}
