// SPDX-License-Identifier: MPL-2.0

// Package container drives a container engine CLI (Docker or Podman).
//
// The Engine interface covers what svcpack needs: build an image from a
// prepared context, check whether a tag exists, run the image in the
// foreground and remove things afterwards. DockerEngine and PodmanEngine
// embed BaseCLIEngine, which builds the argument vectors and executes them
// through an injectable exec function so tests never need a real engine.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback to the
// other engine, or AutoDetectEngine() (Podman is tried first).
package container
