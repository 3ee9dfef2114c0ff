// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	DescriptorNotFoundId Id = iota + 1
	DescriptorInvalidId
	ManifestInvalidId
	ArtifactMissingId
	ContainerEngineNotFoundId
	BuildFailedId
	PortInUseId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // svcpack documentation for this issue
	extLinks []HttpLink  // upstream pages that might help
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the message and a "See also" list of links as terminal
// Markdown with the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	descriptorNotFoundIssue = &Issue{
		id: DescriptorNotFoundId,
		mdMsg: `
# No svcpack.cue found!

svcpack looks for a service descriptor named ` + "`svcpack.cue`" + ` in the
service directory (the current directory unless ` + "`--dir`" + ` is given).

## Things you can try:
- Create one with defaults for an ASGI app:
~~~
$ svcpack init --name uploads --app app.main:app
~~~

- Or point svcpack at the service:
~~~
$ svcpack --dir ./services/uploads validate
~~~`,
	}

	descriptorInvalidIssue = &Issue{
		id: DescriptorInvalidId,
		mdMsg: `
# Invalid service descriptor!

The descriptor failed schema or consistency checks.

## Common issues:
- ` + "`image`" + ` has no tag or digest (floating references are rejected)
- ` + "`entry.port`" + ` differs from ` + "`network.port`" + `
- ` + "`entry.host`" + ` is not ` + "`0.0.0.0`" + `, so the server is unreachable from outside
- ` + "`entry.args`" + ` repeats ` + "`--host`" + ` or ` + "`--port`" + `
- ` + "`dependencies.no_cache`" + ` was set to false

## Example descriptor:
~~~cue
name:  "uploads"
image: "python:3.11-slim"
dependencies: manifest: "requirements.txt"
network: port: 8000
entry: app: "app.main:app"
~~~`,
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Dependency manifest cannot be installed!

The manifest is checked before any image is built. A manifest that pip could
never resolve stops the build early.

## Things you can try:
- Remove duplicate entries for the same package
- Make version constraints on each package overlap, for example
  ` + "`fastapi>=0.100,<0.100`" + ` can never be satisfied
- Move pip options such as ` + "`--index-url`" + ` out of the manifest
- With ` + "`require_pinned: true`" + `, pin every package with ` + "`==`",
		extLinks: []HttpLink{"https://packaging.python.org/en/latest/specifications/version-specifiers/"},
	}

	artifactMissingIssue = &Issue{
		id: ArtifactMissingId,
		mdMsg: `
# Build input missing!

A file or directory named in ` + "`artifacts`" + ` does not exist in the
service directory.

## Things you can try:
- Check ` + "`artifacts.sources`" + ` paths; they are relative to svcpack.cue
- Create the environment file, or disable it:
~~~cue
artifacts: env_file: ""
~~~

- Pass it at run time instead of baking it into the image:
~~~cue
artifacts: env_mode: "runtime"
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Building and running services needs Podman or Docker.

## Supported container engines:
- **Podman** (recommended for rootless containers)
- **Docker**

## Things you can try:
- Install Podman:
  - Linux: ` + "`sudo apt install podman`" + ` or ` + "`sudo dnf install podman`" + `
  - macOS: ` + "`brew install podman`" + `

- Install Docker:
  - https://docs.docker.com/get-docker/

- Configure your preferred engine:
~~~
$ svcpack config init
~~~
~~~cue
container_engine: "docker"
~~~

- ` + "`svcpack render`" + ` and ` + "`svcpack plan`" + ` work without an engine`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Image build failed!

The container engine could not build the image. No tag was applied, so a
previous image of the service is left untouched.

## Things you can try:
- Inspect the generated build file:
~~~
$ svcpack render
~~~

- Check network access to the base image registry and the package index
- Rebuild from scratch:
~~~
$ svcpack build --force
~~~`,
	}

	portInUseIssue = &Issue{
		id: PortInUseId,
		mdMsg: `
# Port already in use!

The host port the service should be published on is taken by another process.
Nothing was started.

## Things you can try:
- Stop the process listening on the port
- Publish on another host port; the container still listens on its own port:
~~~
$ svcpack run --host-port 18000
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the svcpack configuration file.

## Configuration file locations:
- Linux: ~/.config/svcpack/config.cue
- macOS: ~/Library/Application Support/svcpack/config.cue
- Windows: %APPDATA%\svcpack\config.cue

## Things you can try:
- Create a default configuration:
~~~
$ svcpack config init
~~~

- Show the effective configuration:
~~~
$ svcpack config show
~~~`,
	}

	issues = map[Id]*Issue{
		descriptorNotFoundIssue.Id():      descriptorNotFoundIssue,
		descriptorInvalidIssue.Id():       descriptorInvalidIssue,
		manifestInvalidIssue.Id():         manifestInvalidIssue,
		artifactMissingIssue.Id():         artifactMissingIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		buildFailedIssue.Id():             buildFailedIssue,
		portInUseIssue.Id():               portInUseIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id - b.id) })
}

func Get(id Id) *Issue {
	return issues[id]
}
