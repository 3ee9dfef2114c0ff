// SPDX-License-Identifier: MPL-2.0

package descriptor

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/svcpack/svcpack/pkg/cueutil"
	"github.com/svcpack/svcpack/pkg/types"
)

const (
	// FileName is the descriptor file looked up in a project directory.
	FileName = "svcpack.cue"

	// ManagerApt refreshes the index with apt-get (Debian based images).
	ManagerApt PackageManager = "apt"
	// ManagerApk uses apk (Alpine based images).
	ManagerApk PackageManager = "apk"

	// EnvBake copies the env file into the image next to the sources.
	EnvBake EnvMode = "bake"
	// EnvRuntime keeps the env file out of the image and injects it at start.
	EnvRuntime EnvMode = "runtime"

	// DefaultPort is the port used when the descriptor declares none.
	DefaultPort types.ListenPort = 8000
)

var (
	//go:embed descriptor_schema.cue
	descriptorSchema []byte

	// ErrNotFound is returned when a project directory has no svcpack.cue.
	ErrNotFound = errors.New("descriptor not found")
)

type (
	// PackageManager selects how trust packages are installed.
	PackageManager string

	// EnvMode selects how the env file reaches the process.
	EnvMode string

	// Descriptor is the parsed svcpack.cue.
	Descriptor struct {
		Name         string           `json:"name"`
		Image        ImageRef         `json:"image"`
		WorkDir      WorkDir          `json:"workdir"`
		Trust        TrustConfig      `json:"trust"`
		Dependencies DependencyConfig `json:"dependencies"`
		Artifacts    ArtifactConfig   `json:"artifacts"`
		Network      NetworkConfig    `json:"network"`
		Entry        EntryConfig      `json:"entry"`

		// FilePath is where the descriptor was read from. Relative paths in
		// the descriptor resolve against its directory.
		FilePath string `json:"-"`
	}

	// TrustConfig lists the CA packages installed before anything else.
	TrustConfig struct {
		Manager  PackageManager `json:"manager"`
		Packages []string       `json:"packages"`
	}

	// DependencyConfig points at the dependency manifest.
	DependencyConfig struct {
		Manifest  string `json:"manifest"`
		Installer string `json:"installer"`
		// NoCache must stay true: an installer cache in the layer makes the
		// image depend on what happened to be cached at build time.
		NoCache bool `json:"no_cache"`
		// RequirePinned rejects manifests with any non-exact requirement.
		RequirePinned bool `json:"require_pinned"`
	}

	// Copy is one source tree copied into the image.
	Copy struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	}

	// ArtifactConfig describes what the assembly step puts into the image.
	ArtifactConfig struct {
		Sources []Copy `json:"sources"`
		// EnvFile is optional; empty disables it.
		EnvFile string  `json:"env_file"`
		EnvMode EnvMode `json:"env_mode"`
		// Directories are created under the workdir and left writable.
		Directories []string `json:"directories"`
	}

	// NetworkConfig holds the single declared port.
	NetworkConfig struct {
		Port types.ListenPort `json:"port"`
	}

	// EntryConfig is the fixed start command of the image.
	EntryConfig struct {
		Server string           `json:"server"`
		App    string           `json:"app"`
		Host   string           `json:"host"`
		Port   types.ListenPort `json:"port,omitempty"`
		Args   []string         `json:"args"`
	}
)

// Parse decodes descriptor content against the embedded schema and validates it.
func Parse(data []byte, path string) (*Descriptor, error) {
	result, err := cueutil.ParseAndDecode[Descriptor](
		descriptorSchema,
		data,
		"#Descriptor",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	d := result.Value
	d.FilePath = path
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseFile reads and parses the descriptor at path.
func ParseFile(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read descriptor at %s: %w", path, err)
	}
	return Parse(data, path)
}

// Load parses dir/svcpack.cue.
func Load(dir string) (*Descriptor, error) {
	return ParseFile(filepath.Join(dir, FileName))
}

// Dir returns the project directory (the build context root).
func (d *Descriptor) Dir() string {
	if d.FilePath == "" {
		return "."
	}
	return filepath.Dir(d.FilePath)
}

// Resolve returns p relative to the project directory.
func (d *Descriptor) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.Dir(), filepath.FromSlash(p))
}

// ManifestPath is the resolved path of the dependency manifest.
func (d *Descriptor) ManifestPath() string { return d.Resolve(d.Dependencies.Manifest) }

// EnvFilePath is the resolved env file path, empty when none is configured.
func (d *Descriptor) EnvFilePath() string {
	if d.Artifacts.EnvFile == "" {
		return ""
	}
	return d.Resolve(d.Artifacts.EnvFile)
}

// EntryArgv returns the fixed argument vector of the serving process:
// server, app reference, host and the declared port, then extra args.
func (d *Descriptor) EntryArgv() []string {
	argv := []string{
		d.Entry.Server,
		d.Entry.App,
		"--host", d.Entry.Host,
		"--port", d.Network.Port.String(),
	}
	return append(argv, d.Entry.Args...)
}
