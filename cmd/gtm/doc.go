// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the gtm command tree.
//
// Commands follow the `gtm <component> <action>` shape. Each handler loads the
// configuration, opens a session (logger, container engine, tracking file) and
// hands off to one orchestrator in internal/. Errors are classified into the
// issue catalog and rendered on stderr.
package cmd
