// SPDX-License-Identifier: MPL-2.0

// Package build orchestrates image builds for gtm components.
//
// A Builder resolves one or more targets through a TargetSource, derives each
// target's tag with an ImageNameStrategy, asks before replacing an image that
// already exists, runs the container engine build, and records the result in
// the build tracker. Targets are processed one at a time. A failed build marks
// its target Failed and the batch continues; declining a rebuild stops the batch.
package build
