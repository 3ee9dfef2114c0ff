// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/opencontainers/go-digest"

	"github.com/svcpack/svcpack/pkg/descriptor"
	"github.com/svcpack/svcpack/pkg/manifest"
)

// ErrMissingArtifact is returned when a source tree or env file named by the
// descriptor does not exist.
var ErrMissingArtifact = errors.New("artifact not found")

// Inputs is everything a build depends on, resolved and digested up front.
type Inputs struct {
	Descriptor *descriptor.Descriptor
	Manifest   *manifest.Manifest

	// SourceDigest covers every source tree (paths, modes and contents).
	SourceDigest digest.Digest
	// EnvDigest covers the env file when it is baked, empty otherwise.
	EnvDigest digest.Digest
}

// LoadInputs reads and validates the manifest and digests the artifacts of d.
// An invalid manifest fails here, before any step runs.
func LoadInputs(d *descriptor.Descriptor) (*Inputs, error) {
	m, err := manifest.Load(d.ManifestPath())
	if err != nil {
		return nil, err
	}
	if err := m.Validate(d.Dependencies.RequirePinned); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", d.Dependencies.Manifest, err)
	}

	in := &Inputs{Descriptor: d, Manifest: m}

	roots := make([]string, len(d.Artifacts.Sources))
	for i, c := range d.Artifacts.Sources {
		roots[i] = c.Src
	}
	in.SourceDigest, err = DigestTree(d.Dir(), roots)
	if err != nil {
		return nil, err
	}

	if d.Artifacts.EnvFile != "" && d.Artifacts.EnvMode == descriptor.EnvBake {
		in.EnvDigest, err = digestFile(d.EnvFilePath())
		if err != nil {
			return nil, err
		}
	}
	return in, nil
}

// DigestTree digests the named paths under root. Files are visited in
// lexical order and contribute their slash-separated relative path, their
// permission bits and their content, so the digest is independent of
// timestamps and of the host path separator.
func DigestTree(root string, paths []string) (digest.Digest, error) {
	d := digest.Canonical.Digester()
	h := d.Hash()

	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	for _, p := range sorted {
		base := filepath.Join(root, filepath.FromSlash(p))
		if _, err := os.Stat(base); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrMissingArtifact, p)
			}
			return "", err
		}

		err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			switch {
			case entry.IsDir():
				fmt.Fprintf(h, "dir %s %o\n", rel, info.Mode().Perm())
			case entry.Type()&fs.ModeSymlink != 0:
				target, err := os.Readlink(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(h, "link %s %s\n", rel, target)
			default:
				fmt.Fprintf(h, "file %s %o %d\n", rel, info.Mode().Perm(), info.Size())
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				_, err = io.Copy(h, f)
				f.Close()
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("digest %s: %w", p, err)
		}
	}
	return d.Digest(), nil
}

func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return "", err
	}
	defer f.Close()
	return digest.Canonical.FromReader(f)
}
