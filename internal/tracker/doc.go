// SPDX-License-Identifier: MPL-2.0

// Package tracker persists the build and publish status of image tags.
//
// The record is a single JSON object keyed by image tag:
//
//	{"gigdev/alpine-base:abcdef12-2024-01-15": {"build": true, "publish": false}}
//
// Key order is preserved so publishing iterates tags in the order they were built.
// Writes are serialized with an advisory lock and applied by renaming a synced
// temp file over the original.
package tracker
