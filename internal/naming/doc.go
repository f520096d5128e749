// SPDX-License-Identifier: MPL-2.0

// Package naming validates and generates image and container names.
//
// Names are restricted to ASCII letters, digits, and single hyphens, and may not
// begin or end with a hyphen. Image tags apply the same rule to every
// slash-separated namespace segment and to the optional ":" suffix.
package naming
