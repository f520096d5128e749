// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces ConfigDir's platform lookup when non-empty.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir. Command tests use it to keep
// a developer's own ~/.config/gtm/gtm.yaml out of the run.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset clears the ConfigDir override.
func Reset() {
	configDirOverride = ""
}
