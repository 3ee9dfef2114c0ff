// SPDX-License-Identifier: MPL-2.0

// Package manifest reads the dependency manifest that decides which language
// libraries go into the runtime image.
//
// Two formats are accepted: a pip requirements file and the [project].dependencies
// array of a pyproject.toml. Either way the result is an ordered list of
// requirements that Render turns into one canonical requirements text, so the
// dependency layer only changes when the declared set changes.
//
// Validate performs the static checks svcpack can do without contacting an
// index: duplicate packages, constraint sets no version could satisfy, and
// (optionally) requirements that are not pinned to one exact version.
package manifest
