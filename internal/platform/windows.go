// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"regexp"
	"strings"
)

// drivePathPattern matches a drive-letter path after backslashes became slashes.
var drivePathPattern = regexp.MustCompile(`^([A-Za-z]):(.*)$`)

// DockerizePath returns a path the container engine accepts as a bind-mount source.
// Docker on Windows rejects native paths, so C:\a\b is rewritten to //C/a/b.
// Paths on other hosts are returned unchanged.
func DockerizePath(path, goos string) string {
	if goos != Windows {
		return path
	}
	slashed := strings.ReplaceAll(path, `\`, "/")
	return drivePathPattern.ReplaceAllString(slashed, "//$1$2")
}
