// SPDX-License-Identifier: MPL-2.0

// Package cmd implements the svcpack command line: descriptor scaffolding,
// validation, plan and Containerfile rendering, image builds and running the
// built service in the foreground.
package cmd
