// SPDX-License-Identifier: MPL-2.0

// Package issue maps gtm failures to remediation guidance.
//
// Each Id names a failure class (engine missing, build failed, tracking file
// corrupt). The CLI renders the matching Markdown with glamour when verbose
// output is on. ActionableError carries the failed operation, the resource it
// touched and a list of suggestions for the user.
package issue
