// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/pelletier/go-toml/v2"
)

const (
	// FormatRequirements is a pip requirements file.
	FormatRequirements Format = "requirements"
	// FormatPyproject is a PEP 621 pyproject.toml.
	FormatPyproject Format = "pyproject"

	// RenderedName is the file name the rendered manifest gets in the build context.
	RenderedName = "requirements.txt"
)

var (
	// ErrUnsupportedDirective is returned for requirements lines that pull in
	// other files or change the package index. They would make the manifest
	// digest depend on state outside the file.
	ErrUnsupportedDirective = errors.New("unsupported requirements directive")

	// ErrNoProjectTable is returned when pyproject.toml has no [project] table.
	ErrNoProjectTable = errors.New("pyproject.toml has no [project] table")
)

type (
	// Format identifies the on-disk manifest syntax.
	Format string

	// Manifest is an ordered list of declared dependencies.
	Manifest struct {
		Path         string
		Format       Format
		Requirements []Requirement
	}

	pyproject struct {
		Project *struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
)

// Load reads the manifest at path, picking the parser by file name.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if filepath.Base(path) == "pyproject.toml" || filepath.Ext(path) == ".toml" {
		return ParsePyproject(data, path)
	}
	return ParseRequirements(bytes.NewReader(data), path)
}

// ParseRequirements parses requirements.txt syntax. Blank lines and comments
// are skipped, backslash continuations are joined, and per-requirement
// --hash options are kept. File includes (-r, -c), editable installs and
// global options are rejected.
func ParseRequirements(r io.Reader, filename string) (*Manifest, error) {
	m := &Manifest{Path: filename, Format: FormatRequirements}

	sc := bufio.NewScanner(r)
	var (
		lineNo    int
		startLine int
		pending   strings.Builder
	)
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if pending.Len() == 0 {
			startLine = lineNo
		}
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			pending.WriteString(cont)
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(line)
		logical := pending.String()
		pending.Reset()

		req, ok, err := parseLine(logical)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, startLine, err)
		}
		if !ok {
			continue
		}
		req.Line = startLine
		m.Requirements = append(m.Requirements, req)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if pending.Len() > 0 {
		return nil, fmt.Errorf("%s:%d: %w: dangling line continuation", filename, startLine, ErrInvalidRequirement)
	}
	return m, nil
}

func parseLine(line string) (Requirement, bool, error) {
	line = stripComment(line)
	if line == "" {
		return Requirement{}, false, nil
	}
	if strings.HasPrefix(line, "-") {
		directive, _, _ := strings.Cut(line, " ")
		return Requirement{}, false, fmt.Errorf("%w: %s", ErrUnsupportedDirective, directive)
	}

	var hashes []string
	fields := strings.Fields(line)
	kept := fields[:0]
	for _, f := range fields {
		if h, ok := strings.CutPrefix(f, "--hash="); ok {
			hashes = append(hashes, h)
			continue
		}
		if strings.HasPrefix(f, "--") {
			return Requirement{}, false, fmt.Errorf("%w: %s", ErrUnsupportedDirective, f)
		}
		kept = append(kept, f)
	}

	req, err := ParseRequirement(strings.Join(kept, " "))
	if err != nil {
		return Requirement{}, false, err
	}
	req.Hashes = hashes
	return req, true, nil
}

// stripComment drops a full-line comment or a " #" inline comment.
func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	if i := strings.Index(line, " #"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "\t#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// ParsePyproject reads [project].dependencies from a pyproject.toml.
func ParsePyproject(data []byte, filename string) (*Manifest, error) {
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if doc.Project == nil {
		return nil, fmt.Errorf("%s: %w", filename, ErrNoProjectTable)
	}

	m := &Manifest{Path: filename, Format: FormatPyproject}
	for i, dep := range doc.Project.Dependencies {
		req, err := ParseRequirement(dep)
		if err != nil {
			return nil, fmt.Errorf("%s: dependencies[%d]: %w", filename, i, err)
		}
		m.Requirements = append(m.Requirements, req)
	}
	return m, nil
}

// Render returns the canonical requirements text in declaration order.
// Comments and formatting of the source file do not survive, so cosmetic
// edits never change Digest.
func (m *Manifest) Render() string {
	var sb strings.Builder
	for _, r := range m.Requirements {
		sb.WriteString(r.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Digest is the content digest of Render.
func (m *Manifest) Digest() digest.Digest {
	return digest.FromString(m.Render())
}

// Names returns the normalized package names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Requirements))
	for i, r := range m.Requirements {
		names[i] = r.NormalizedName()
	}
	return names
}
