// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/opencontainers/go-digest"

	"github.com/svcpack/svcpack/pkg/types"
)

const (
	FactBase         Fact = "base"
	FactTrust        Fact = "trust"
	FactDependencies Fact = "dependencies"
	FactArtifacts    Fact = "artifacts"
	FactNetwork      Fact = "network"
	FactEntrypoint   Fact = "entrypoint"
)

type (
	// Fact is a property of the filesystem state a step establishes,
	// e.g. "the trust store is populated".
	Fact string

	// Instruction is one Containerfile line.
	Instruction struct {
		Op   string `json:"op" yaml:"op"`
		Args string `json:"args" yaml:"args"`
	}

	// Layer is what one step added to the image.
	Layer struct {
		Step         string          `json:"step" yaml:"step"`
		Instructions []Instruction   `json:"instructions" yaml:"instructions"`
		Inputs       []digest.Digest `json:"inputs,omitempty" yaml:"inputs,omitempty"`
		Key          digest.Digest   `json:"key" yaml:"key"`
	}

	// Snapshot is an immutable model of the image filesystem after some
	// prefix of the build. The zero value is not usable; start from
	// NewSnapshot.
	Snapshot struct {
		inputs  *Inputs
		layers  []Layer
		facts   map[Fact]bool
		exposed types.ListenPort
	}
)

// String returns the instruction as a Containerfile line.
func (i Instruction) String() string { return i.Op + " " + i.Args }

// NewSnapshot returns the empty snapshot every build starts from.
func NewSnapshot(in *Inputs) Snapshot {
	return Snapshot{inputs: in, facts: map[Fact]bool{}}
}

// Inputs returns the build inputs the snapshot was started with.
func (s Snapshot) Inputs() *Inputs { return s.inputs }

// Has reports whether fact has been established.
func (s Snapshot) Has(f Fact) bool { return s.facts[f] }

// Layers returns a copy of the layers applied so far.
func (s Snapshot) Layers() []Layer { return slices.Clone(s.layers) }

// Key is the cache key of the top layer, empty for the initial snapshot.
func (s Snapshot) Key() digest.Digest {
	if len(s.layers) == 0 {
		return ""
	}
	return s.layers[len(s.layers)-1].Key
}

// ExposedPort is the port recorded by the network step, 0 before it ran.
func (s Snapshot) ExposedPort() types.ListenPort { return s.exposed }

// withLayer returns a new snapshot with one more layer that provides fact.
func (s Snapshot) withLayer(step string, fact Fact, instr []Instruction, inputs ...digest.Digest) Snapshot {
	layer := Layer{
		Step:         step,
		Instructions: instr,
		Inputs:       inputs,
		Key:          layerKey(s.Key(), step, instr, inputs),
	}

	next := Snapshot{
		inputs:  s.inputs,
		layers:  append(slices.Clip(s.layers), layer),
		facts:   maps.Clone(s.facts),
		exposed: s.exposed,
	}
	next.facts[fact] = true
	return next
}

func (s Snapshot) withExposed(p types.ListenPort) Snapshot {
	s.exposed = p
	return s
}

// layerKey chains the previous key with everything that decides a layer's
// content. Input digests stand in for file contents the instructions copy.
func layerKey(prev digest.Digest, step string, instr []Instruction, inputs []digest.Digest) digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()
	fmt.Fprintf(h, "prev %s\nstep %s\n", prev, step)
	for _, i := range instr {
		fmt.Fprintf(h, "instr %q\n", i.String())
	}
	for _, in := range inputs {
		fmt.Fprintf(h, "input %s\n", in)
	}
	return d.Digest()
}
