// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	"fmt"
	"strings"
)

// Default returns the descriptor of a conventional FastAPI-style service:
// python:3.11-slim, requirements.txt, sources under app/ and uvicorn
// serving app.main:app on port 8000.
func Default(name string) *Descriptor {
	return &Descriptor{
		Name:    name,
		Image:   "python:3.11-slim",
		WorkDir: "/app",
		Trust: TrustConfig{
			Manager:  ManagerApt,
			Packages: []string{"ca-certificates"},
		},
		Dependencies: DependencyConfig{
			Manifest:  "requirements.txt",
			Installer: "pip",
			NoCache:   true,
		},
		Artifacts: ArtifactConfig{
			Sources: []Copy{{Src: "app", Dst: "./app"}},
			EnvFile: ".env",
			EnvMode: EnvBake,
		},
		Network: NetworkConfig{Port: DefaultPort},
		Entry: EntryConfig{
			Server: "uvicorn",
			App:    "app.main:app",
			Host:   "0.0.0.0",
		},
	}
}

// GenerateCUE renders d as svcpack.cue text. Fields are always written out
// so the generated file documents every knob.
func GenerateCUE(d *Descriptor) string {
	var sb strings.Builder

	sb.WriteString("// svcpack descriptor\n\n")
	fmt.Fprintf(&sb, "name:    %q\n", d.Name)
	fmt.Fprintf(&sb, "image:   %q\n", d.Image)
	fmt.Fprintf(&sb, "workdir: %q\n", d.WorkDir)

	sb.WriteString("\ntrust: {\n")
	fmt.Fprintf(&sb, "\tmanager:  %q\n", d.Trust.Manager)
	fmt.Fprintf(&sb, "\tpackages: %s\n", cueList(d.Trust.Packages))
	sb.WriteString("}\n")

	sb.WriteString("\ndependencies: {\n")
	fmt.Fprintf(&sb, "\tmanifest:       %q\n", d.Dependencies.Manifest)
	fmt.Fprintf(&sb, "\tinstaller:      %q\n", d.Dependencies.Installer)
	fmt.Fprintf(&sb, "\tno_cache:       %t\n", d.Dependencies.NoCache)
	fmt.Fprintf(&sb, "\trequire_pinned: %t\n", d.Dependencies.RequirePinned)
	sb.WriteString("}\n")

	sb.WriteString("\nartifacts: {\n")
	sb.WriteString("\tsources: [\n")
	for _, c := range d.Artifacts.Sources {
		fmt.Fprintf(&sb, "\t\t{src: %q, dst: %q},\n", c.Src, c.Dst)
	}
	sb.WriteString("\t]\n")
	fmt.Fprintf(&sb, "\tenv_file:    %q\n", d.Artifacts.EnvFile)
	fmt.Fprintf(&sb, "\tenv_mode:    %q\n", d.Artifacts.EnvMode)
	fmt.Fprintf(&sb, "\tdirectories: %s\n", cueList(d.Artifacts.Directories))
	sb.WriteString("}\n")

	sb.WriteString("\nnetwork: {\n")
	fmt.Fprintf(&sb, "\tport: %d\n", d.Network.Port)
	sb.WriteString("}\n")

	sb.WriteString("\nentry: {\n")
	fmt.Fprintf(&sb, "\tserver: %q\n", d.Entry.Server)
	fmt.Fprintf(&sb, "\tapp:    %q\n", d.Entry.App)
	fmt.Fprintf(&sb, "\thost:   %q\n", d.Entry.Host)
	if d.Entry.Port.IsSet() {
		fmt.Fprintf(&sb, "\tport:   %d\n", d.Entry.Port)
	}
	fmt.Fprintf(&sb, "\targs:   %s\n", cueList(d.Entry.Args))
	sb.WriteString("}\n")

	return sb.String()
}

func cueList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
