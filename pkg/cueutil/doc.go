// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE parsing utilities.
//
// Both the build descriptor (svcpack.cue) and the user configuration file are
// CUE documents checked against an embedded schema. The flow is always:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with the schema's root definition
//  3. Validate and decode to a Go struct
//
// # Usage
//
//	//go:embed descriptor_schema.cue
//	var schemaBytes []byte
//
//	result, err := cueutil.ParseAndDecode[Descriptor](
//	    schemaBytes,
//	    data,
//	    "#Descriptor",
//	    cueutil.WithFilename("svcpack.cue"),
//	)
package cueutil
