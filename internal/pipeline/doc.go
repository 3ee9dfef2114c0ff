// SPDX-License-Identifier: MPL-2.0

// Package pipeline models an image build as pure steps over immutable
// snapshots.
//
// Each Step declares the facts it requires and the single fact it provides.
// A Plan orders steps through those prerequisites, then applies them one at a
// time: every application returns a new Snapshot with one more layer. A layer
// carries the instructions it contributes and a cache key chained from the
// previous layer's key and the step's own input digests. Only the assembly
// step sees the source tree digest, so source edits never invalidate the
// dependency layer.
//
// The finished snapshot renders to a Containerfile; nothing in this package
// talks to a container engine.
package pipeline
