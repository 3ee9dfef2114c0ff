// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by svcpack tests: environment and
// home directory overrides, project fixtures and a limit on concurrent
// container tests.
package testutil
