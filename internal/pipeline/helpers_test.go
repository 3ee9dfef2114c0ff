// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/svcpack/svcpack/internal/testutil"
	"github.com/svcpack/svcpack/pkg/descriptor"
)

// newProject writes a minimal service project and returns its descriptor.
func newProject(t *testing.T, mutate func(*descriptor.Descriptor)) *descriptor.Descriptor {
	t.Helper()

	dir := t.TempDir()
	testutil.WriteFiles(t, dir, testutil.ServiceFiles())

	d := descriptor.Default("uploads")
	d.FilePath = filepath.Join(dir, descriptor.FileName)
	if mutate != nil {
		mutate(d)
	}
	return d
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustInputs(t *testing.T, d *descriptor.Descriptor) *Inputs {
	t.Helper()

	in, err := LoadInputs(d)
	if err != nil {
		t.Fatalf("LoadInputs: %v", err)
	}
	return in
}

func mustRun(t *testing.T, in *Inputs) *Result {
	t.Helper()

	plan, err := NewPlan(DefaultSteps()...)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	res, err := plan.Run(in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

func layerKeyOf(t *testing.T, r *Result, step string) string {
	t.Helper()

	l, ok := r.Layer(step)
	if !ok {
		t.Fatalf("no layer for step %s", step)
	}
	return l.Key.String()
}
