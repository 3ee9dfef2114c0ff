// SPDX-License-Identifier: MPL-2.0

// Package provision turns a planned build into a tagged image.
//
// A Builder prepares a temporary build context holding the generated
// Containerfile, the rendered dependency manifest, the source trees and the
// baked env file, then asks the container engine to build it:
//
//	b := provision.NewBuilder(engine, provision.WithLogger(logger))
//	res, err := b.BuildDescriptor(ctx, d)
//	// res.ImageTag is "svcpack/<name>:<12 hex chars of the image key>"
//
// Tags are content addressed. When the tag already exists the build is
// skipped unless ForceRebuild is set. The engine never tags a failed
// build, so a failure leaves any previous image untouched.
package provision
