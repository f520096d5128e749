// SPDX-License-Identifier: MPL-2.0

// Package labconfig produces the labmanager configuration file baked into the
// labmanager image. The shipped defaults are merged section by section with a
// developer override file before each build.
package labconfig
