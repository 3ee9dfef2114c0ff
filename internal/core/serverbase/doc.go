// SPDX-License-Identifier: MPL-2.0

// Package serverbase is the lifecycle state machine of one foreground
// service process: created, starting, running, then stopped or failed.
//
// A Base is single-use. There is no restart: once a process has reached a
// terminal state a new Base must be created for the next run.
package serverbase
