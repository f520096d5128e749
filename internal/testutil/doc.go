// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by gtm tests: environment and file
// setup that fails the test on error, a controllable clock, and a semaphore
// bounding concurrent container integration tests.
//
// The enginetest subpackage holds an in-memory container engine for
// orchestrator tests.
package testutil
