// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"slices"

	"github.com/docker/go-connections/nat"
	"github.com/opencontainers/go-digest"

	"github.com/svcpack/svcpack/pkg/descriptor"
	"github.com/svcpack/svcpack/pkg/manifest"
)

type (
	// BaseStep selects the pinned runtime image and the working directory.
	BaseStep struct{}

	// TrustStep refreshes the package index, installs the CA packages and
	// rebuilds the trust store, all in one layer.
	TrustStep struct{}

	// DependencyStep copies the rendered manifest and installs it without
	// an installer cache.
	DependencyStep struct{}

	// AssemblyStep copies the sources and the baked env file and creates
	// the writable directories.
	AssemblyStep struct{}

	// NetworkStep declares the single listening port.
	NetworkStep struct{}

	// EntrypointStep fixes the start command in exec form.
	EntrypointStep struct{}
)

// DefaultSteps returns the six build steps, in their canonical order.
func DefaultSteps() []Step {
	return []Step{BaseStep{}, TrustStep{}, DependencyStep{}, AssemblyStep{}, NetworkStep{}, EntrypointStep{}}
}

func (BaseStep) Name() string     { return "base" }
func (BaseStep) Requires() []Fact { return nil }
func (BaseStep) Provides() Fact   { return FactBase }

func (st BaseStep) Apply(s Snapshot) (Snapshot, error) {
	if err := checkRequires(st, s); err != nil {
		return s, err
	}
	d := s.Inputs().Descriptor
	if err := d.Image.Validate(); err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}
	if err := d.WorkDir.Validate(); err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}
	return s.withLayer(st.Name(), st.Provides(), []Instruction{
		{Op: "FROM", Args: d.Image.String()},
		{Op: "WORKDIR", Args: d.WorkDir.String()},
	}), nil
}

func (TrustStep) Name() string     { return "trust" }
func (TrustStep) Requires() []Fact { return []Fact{FactBase} }
func (TrustStep) Provides() Fact   { return FactTrust }

func (st TrustStep) Apply(s Snapshot) (Snapshot, error) {
	if err := checkRequires(st, s); err != nil {
		return s, err
	}
	trust := s.Inputs().Descriptor.Trust
	if len(trust.Packages) == 0 {
		return s, &StepError{Step: st.Name(), Err: descriptor.ErrNoTrustPackages}
	}
	pkgs, err := shellWords(trust.Packages...)
	if err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}

	var script string
	switch trust.Manager {
	case descriptor.ManagerApk:
		script = andThen(
			"apk add --no-cache "+pkgs,
			"update-ca-certificates",
		)
	default:
		script = andThen(
			"apt-get update",
			"apt-get install -y --no-install-recommends "+pkgs,
			"update-ca-certificates",
			"rm -rf /var/lib/apt/lists/*",
		)
	}
	run, err := runInstruction(script)
	if err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}
	return s.withLayer(st.Name(), st.Provides(), []Instruction{run}), nil
}

func (DependencyStep) Name() string     { return "dependencies" }
func (DependencyStep) Requires() []Fact { return []Fact{FactTrust} }
func (DependencyStep) Provides() Fact   { return FactDependencies }

func (st DependencyStep) Apply(s Snapshot) (Snapshot, error) {
	if err := checkRequires(st, s); err != nil {
		return s, err
	}
	in := s.Inputs()
	if in.Manifest == nil {
		return s, &StepError{Step: st.Name(), Err: fmt.Errorf("%w: manifest not loaded", ErrMissingPrerequisite)}
	}
	if !in.Descriptor.Dependencies.NoCache {
		return s, &StepError{Step: st.Name(), Err: descriptor.ErrCacheEnabled}
	}

	install, err := shellWords("pip", "install", "--no-cache-dir", "-r", manifest.RenderedName)
	if err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}
	run, err := runInstruction(install)
	if err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}

	// Only the manifest digest feeds this key; sources enter at assembly.
	cp, err := copyInstruction(manifest.RenderedName, ".")
	if err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}
	return s.withLayer(st.Name(), st.Provides(), []Instruction{cp, run}, in.Manifest.Digest()), nil
}

func (AssemblyStep) Name() string     { return "assembly" }
func (AssemblyStep) Requires() []Fact { return []Fact{FactDependencies} }
func (AssemblyStep) Provides() Fact   { return FactArtifacts }

func (st AssemblyStep) Apply(s Snapshot) (Snapshot, error) {
	if err := checkRequires(st, s); err != nil {
		return s, err
	}
	in := s.Inputs()
	art := in.Descriptor.Artifacts

	var instr []Instruction
	for _, c := range art.Sources {
		cp, err := copyInstruction(path.Clean(c.Src), c.Dst)
		if err != nil {
			return s, &StepError{Step: st.Name(), Err: err}
		}
		instr = append(instr, cp)
	}
	inputs := []digest.Digest{in.SourceDigest}

	if name := EnvFileContextName(in.Descriptor); name != "" {
		cp, err := copyInstruction(name, ".")
		if err != nil {
			return s, &StepError{Step: st.Name(), Err: err}
		}
		instr = append(instr, cp)
		inputs = append(inputs, in.EnvDigest)
	}

	if len(art.Directories) > 0 {
		mkdir, err := shellWords(append([]string{"mkdir", "-p"}, art.Directories...)...)
		if err != nil {
			return s, &StepError{Step: st.Name(), Err: err}
		}
		run, err := runInstruction(mkdir)
		if err != nil {
			return s, &StepError{Step: st.Name(), Err: err}
		}
		instr = append(instr, run)
	}

	if len(instr) == 0 {
		return s, &StepError{Step: st.Name(), Err: fmt.Errorf("%w: no sources to copy", ErrMissingArtifact)}
	}
	inputs = slices.DeleteFunc(inputs, func(d digest.Digest) bool { return d == "" })
	return s.withLayer(st.Name(), st.Provides(), instr, inputs...), nil
}

func (NetworkStep) Name() string     { return "network" }
func (NetworkStep) Requires() []Fact { return []Fact{FactBase} }
func (NetworkStep) Provides() Fact   { return FactNetwork }

func (st NetworkStep) Apply(s Snapshot) (Snapshot, error) {
	if err := checkRequires(st, s); err != nil {
		return s, err
	}
	port := s.Inputs().Descriptor.Network.Port
	if err := port.ValidateDeclared(); err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}
	p, err := nat.NewPort("tcp", port.String())
	if err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}
	next := s.withLayer(st.Name(), st.Provides(), []Instruction{{Op: "EXPOSE", Args: string(p)}})
	return next.withExposed(port), nil
}

func (EntrypointStep) Name() string { return "entrypoint" }

func (EntrypointStep) Requires() []Fact {
	return []Fact{FactArtifacts, FactNetwork}
}

func (EntrypointStep) Provides() Fact { return FactEntrypoint }

func (st EntrypointStep) Apply(s Snapshot) (Snapshot, error) {
	if err := checkRequires(st, s); err != nil {
		return s, err
	}
	d := s.Inputs().Descriptor
	if d.Entry.Port.IsSet() && d.Entry.Port != s.ExposedPort() {
		return s, &StepError{Step: st.Name(), Err: fmt.Errorf("%w: entry %d, exposed %d",
			descriptor.ErrPortMismatch, d.Entry.Port, s.ExposedPort())}
	}
	if d.Network.Port != s.ExposedPort() {
		return s, &StepError{Step: st.Name(), Err: fmt.Errorf("%w: declared %d, exposed %d",
			descriptor.ErrPortMismatch, d.Network.Port, s.ExposedPort())}
	}

	argv, err := json.Marshal(d.EntryArgv())
	if err != nil {
		return s, &StepError{Step: st.Name(), Err: err}
	}
	return s.withLayer(st.Name(), st.Provides(), []Instruction{{Op: "CMD", Args: string(argv)}}), nil
}

// copyInstruction renders COPY in JSON form so path names are never split
// or continued onto another line.
func copyInstruction(src, dst string) (Instruction, error) {
	args, err := json.Marshal([]string{src, dst})
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: "COPY", Args: string(args)}, nil
}

// EnvFileContextName is the file name the env file gets in the build
// context, empty when it is not baked into the image.
func EnvFileContextName(d *descriptor.Descriptor) string {
	if d.Artifacts.EnvFile == "" || d.Artifacts.EnvMode != descriptor.EnvBake {
		return ""
	}
	return filepath.Base(filepath.FromSlash(d.Artifacts.EnvFile))
}
