// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/svcpack/svcpack/internal/pipeline"
	"github.com/svcpack/svcpack/pkg/manifest"
)

// ContainerfileName is the build file name inside a prepared context.
const ContainerfileName = "Containerfile"

// PrepareContext writes everything the planned Containerfile refers to into
// a new directory under parent: the Containerfile itself, the rendered
// manifest, each source tree at its relative path and the baked env file.
// cleanup removes the directory.
func PrepareContext(parent string, planned *pipeline.Result) (dir string, cleanup func(), err error) {
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create build context parent directory: %w", err)
	}
	dir, err = os.MkdirTemp(parent, "ctx-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create build context: %w", err)
	}
	cleanup = func() {
		_ = os.RemoveAll(dir) // Temporary directory; error non-critical
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	in := planned.Snapshot.Inputs()
	d := in.Descriptor

	if err := writeFile(dir, ContainerfileName, pipeline.Containerfile(planned.Snapshot)); err != nil {
		return "", nil, err
	}
	if err := writeFile(dir, manifest.RenderedName, in.Manifest.Render()); err != nil {
		return "", nil, err
	}

	for _, c := range d.Artifacts.Sources {
		rel := filepath.FromSlash(path.Clean(c.Src))
		if err := CopyPath(d.Resolve(c.Src), filepath.Join(dir, rel)); err != nil {
			return "", nil, fmt.Errorf("failed to copy source %s: %w", c.Src, err)
		}
	}

	if name := pipeline.EnvFileContextName(d); name != "" {
		if err := CopyFile(d.EnvFilePath(), filepath.Join(dir, name)); err != nil {
			return "", nil, fmt.Errorf("failed to copy env file: %w", err)
		}
	}

	return dir, cleanup, nil
}

func writeFile(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// contextParent picks where build contexts live.
//
// Docker installed via Snap cannot read /tmp or hidden directories in
// $HOME, so a visible directory in $HOME is preferred. testscript and some
// CI setups point HOME at a path that does not exist; those fall back to
// the working directory and finally to the system temp directory.
func contextParent() string {
	if home, err := os.UserHomeDir(); err == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			return filepath.Join(home, "svcpack-build")
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, ".svcpack-build")
	}
	return filepath.Join(os.TempDir(), "svcpack-build")
}
