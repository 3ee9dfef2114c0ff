// SPDX-License-Identifier: MPL-2.0

// Package descriptor defines svcpack.cue, the build-and-run descriptor of a
// single web service.
//
// A descriptor names the pinned base image, the CA trust packages, the
// dependency manifest, the artifacts copied into the image, the one port the
// service listens on and the fixed entry command. It is parsed against an
// embedded CUE schema that fills in defaults, then validated in Go for the
// cross-field rules CUE cannot express well (the entry command must bind the
// declared port on all interfaces).
package descriptor
