// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidEnvFile is wrapped by EnvFileError.
	ErrInvalidEnvFile = errors.New("invalid env file")

	errMissingEquals   = errors.New("invalid format (missing '=')")
	errEmptyName       = errors.New("empty variable name")
	errInvalidName     = errors.New("variable name must match [A-Za-z_][A-Za-z0-9_]*")
	errUnterminatedDbl = errors.New("unterminated double quote")
	errUnterminatedSgl = errors.New("unterminated single quote")
)

// EnvFileError locates a malformed line of an env file.
type EnvFileError struct {
	File string
	Line int
	Err  error
}

func (e *EnvFileError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

// Unwrap returns both the line problem and ErrInvalidEnvFile.
func (e *EnvFileError) Unwrap() []error { return []error{ErrInvalidEnvFile, e.Err} }

// LoadEnvFile loads a dotenv file and merges its contents into env.
// A relative path is resolved against basePath (the service directory).
// A '?' suffix marks the file optional: a missing optional file is not an
// error. Later loads override earlier values for the same keys.
func LoadEnvFile(env map[string]string, path, basePath string) error {
	path, optional := strings.CutSuffix(path, "?")

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(basePath, filepath.FromSlash(path))
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read env file '%s': %w", path, err)
	}
	return ParseEnvFile(env, content, path)
}

// ParseEnvFile parses dotenv content and merges it into env:
//   - blank lines and lines starting with # are skipped
//   - an optional "export " prefix is ignored
//   - KEY=value is unquoted; " #" starts a trailing comment
//   - KEY="value" processes \n \r \t \\ \" and \$ escapes
//   - KEY='value' is literal
//   - KEY= sets the empty string
//
// Values are not expanded: the application receives them exactly as
// written, the same bytes it would read from a baked file.
func ParseEnvFile(env map[string]string, content []byte, filename string) error {
	for i, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, err := parseEnvLine(line)
		if err != nil {
			return &EnvFileError{File: filename, Line: i + 1, Err: err}
		}
		env[key] = value
	}
	return nil
}

func parseEnvLine(line string) (key, value string, err error) {
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

	key, raw, found := strings.Cut(line, "=")
	if !found {
		return "", "", errMissingEquals
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", errEmptyName
	}
	if !isEnvName(key) {
		return "", "", fmt.Errorf("%w: %q", errInvalidName, key)
	}

	value, err = parseEnvValue(strings.TrimSpace(raw))
	return key, value, err
}

func isEnvName(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func parseEnvValue(value string) (string, error) {
	switch {
	case value == "":
		return "", nil
	case value[0] == '"':
		if len(value) < 2 || value[len(value)-1] != '"' {
			return "", errUnterminatedDbl
		}
		return unescapeDouble(value[1 : len(value)-1]), nil
	case value[0] == '\'':
		if len(value) < 2 || value[len(value)-1] != '\'' {
			return "", errUnterminatedSgl
		}
		return value[1 : len(value)-1], nil
	}

	if before, _, found := strings.Cut(value, " #"); found {
		value = strings.TrimSpace(before)
	}
	return value, nil
}

// unescapeDouble keeps unknown escapes as written.
func unescapeDouble(value string) string {
	var sb strings.Builder
	sb.Grow(len(value))

	for i := 0; i < len(value); i++ {
		c := value[i]
		if c != '\\' || i+1 == len(value) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch next := value[i]; next {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '"', '$':
			sb.WriteByte(next)
		default:
			sb.WriteByte('\\')
			sb.WriteByte(next)
		}
	}
	return sb.String()
}
