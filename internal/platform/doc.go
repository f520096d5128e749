// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform host facts for container mappings.
//
// It detects the host user id, working directory and engine socket, and rewrites
// Windows paths into the form Docker accepts as bind-mount sources.
package platform
