// SPDX-License-Identifier: MPL-2.0

// Package runtime starts a built service image as one foreground process.
//
// A Launcher checks that the host port is free, publishes it onto the
// declared container port and runs the image with its baked entry command.
// The exit status of the process is reported unchanged. There is no
// restart or health checking: when the process ends, the launch is over.
package runtime
