// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"

	"github.com/svcpack/svcpack/internal/dag"
	"github.com/svcpack/svcpack/pkg/descriptor"
)

// ErrDuplicateProvider is returned when two steps claim the same fact.
var ErrDuplicateProvider = errors.New("fact provided by more than one step")

type (
	// Plan is an ordered, validated list of steps.
	Plan struct {
		steps []Step
	}

	// Result is the outcome of a successful Run.
	Result struct {
		Snapshot Snapshot
		// ImageKey is the key of the top layer; it changes whenever anything
		// that ends up in the image changes.
		ImageKey digest.Digest
	}
)

// NewPlan orders steps so every step comes after the providers of its
// required facts. Steps are otherwise kept in the order given.
func NewPlan(steps ...Step) (*Plan, error) {
	providers := make(map[Fact]Step, len(steps))
	byName := make(map[string]Step, len(steps))
	g := dag.New[string]()

	for _, st := range steps {
		if other, ok := providers[st.Provides()]; ok {
			return nil, fmt.Errorf("%w: %s by %s and %s", ErrDuplicateProvider, st.Provides(), other.Name(), st.Name())
		}
		providers[st.Provides()] = st
		byName[st.Name()] = st
		g.AddNode(st.Name())
	}

	for _, st := range steps {
		for _, f := range st.Requires() {
			p, ok := providers[f]
			if !ok {
				return nil, &StepError{Step: st.Name(), Err: fmt.Errorf("%w: no step provides %s", ErrMissingPrerequisite, f)}
			}
			g.AddEdge(p.Name(), st.Name())
		}
	}

	order, err := g.Sort()
	if err != nil {
		return nil, err
	}
	plan := &Plan{steps: make([]Step, len(order))}
	for i, name := range order {
		plan.steps[i] = byName[name]
	}
	return plan, nil
}

// Steps returns the steps in application order.
func (p *Plan) Steps() []Step { return append([]Step(nil), p.steps...) }

// Run applies every step to the snapshot produced by the previous one. The
// first failure stops the run; no later snapshot is produced.
func (p *Plan) Run(in *Inputs) (*Result, error) {
	if in == nil || in.Descriptor == nil {
		return nil, errors.New("pipeline: no inputs")
	}
	s := NewSnapshot(in)
	for _, st := range p.steps {
		next, err := st.Apply(s)
		if err != nil {
			return nil, err
		}
		s = next
	}
	return &Result{Snapshot: s, ImageKey: s.Key()}, nil
}

// Layer returns the layer produced by the named step.
func (r *Result) Layer(step string) (Layer, bool) {
	for _, l := range r.Snapshot.layers {
		if l.Step == step {
			return l, true
		}
	}
	return Layer{}, false
}

// ShortKey is the first 12 hex characters of the image key, used as tag.
func (r *Result) ShortKey() string {
	enc := r.ImageKey.Encoded()
	if len(enc) > 12 {
		return enc[:12]
	}
	return enc
}

// Prepare loads the inputs of d and runs the default plan over them. It is
// the whole check that precedes any engine call: an invalid manifest, a
// missing artifact or a port mismatch fails here.
func Prepare(d *descriptor.Descriptor) (*Plan, *Result, error) {
	in, err := LoadInputs(d)
	if err != nil {
		return nil, nil, err
	}
	p, err := NewPlan(DefaultSteps()...)
	if err != nil {
		return nil, nil, err
	}
	r, err := p.Run(in)
	if err != nil {
		return nil, nil, err
	}
	return p, r, nil
}
