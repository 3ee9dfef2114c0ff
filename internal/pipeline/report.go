// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type (
	// Report is the serializable view of a run, printed by "svcpack plan".
	Report struct {
		Service  string       `json:"service" yaml:"service"`
		Image    string       `json:"image" yaml:"image"`
		Port     int          `json:"port" yaml:"port"`
		Command  []string     `json:"command" yaml:"command"`
		ImageKey string       `json:"image_key" yaml:"image_key"`
		Steps    []StepReport `json:"steps" yaml:"steps"`
	}

	// StepReport describes one applied step.
	StepReport struct {
		Name         string   `json:"name" yaml:"name"`
		Requires     []Fact   `json:"requires,omitempty" yaml:"requires,omitempty"`
		Provides     Fact     `json:"provides" yaml:"provides"`
		Key          string   `json:"key" yaml:"key"`
		Inputs       []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
		Instructions []string `json:"instructions" yaml:"instructions"`
	}
)

// NewReport builds the report of a finished run of p.
func NewReport(p *Plan, r *Result) *Report {
	d := r.Snapshot.Inputs().Descriptor
	rep := &Report{
		Service:  d.Name,
		Image:    d.Image.String(),
		Port:     int(d.Network.Port),
		Command:  d.EntryArgv(),
		ImageKey: r.ImageKey.String(),
	}
	for _, st := range p.steps {
		l, ok := r.Layer(st.Name())
		if !ok {
			continue
		}
		sr := StepReport{
			Name:     st.Name(),
			Requires: st.Requires(),
			Provides: st.Provides(),
			Key:      l.Key.String(),
		}
		for _, in := range l.Inputs {
			sr.Inputs = append(sr.Inputs, in.String())
		}
		for _, i := range l.Instructions {
			sr.Instructions = append(sr.Instructions, i.String())
		}
		rep.Steps = append(rep.Steps, sr)
	}
	return rep
}

// WriteYAML encodes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}

// WriteJSON encodes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// WriteText prints one row per step with its short key.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "STEP\tPROVIDES\tKEY\n")
	for _, s := range r.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Provides, shortDigest(s.Key))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nimage key: %s\n", r.ImageKey)
	return err
}

func shortDigest(s string) string {
	const prefix = len("sha256:")
	if len(s) > prefix+12 {
		return s[prefix : prefix+12]
	}
	return s
}
