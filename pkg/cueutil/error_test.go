// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()
		if err := FormatError(nil, "svcpack.cue"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("non-CUE error is wrapped with filepath", func(t *testing.T) {
		t.Parallel()

		original := errors.New("some error")
		err := FormatError(original, "svcpack.cue")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "svcpack.cue") || !strings.Contains(err.Error(), "some error") {
			t.Errorf("unexpected message: %v", err)
		}
		if !errors.Is(err, original) {
			t.Error("expected error chain to contain the original error")
		}
	})
}

func TestFormatErrorKeepsSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing file", fmt.Errorf("read svcpack.cue: %w", fs.ErrNotExist), fs.ErrNotExist},
		{"oversized file", CheckFileSize(make([]byte, 16), 8, "svcpack.cue"), ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if err := FormatError(tt.err, "svcpack.cue"); !errors.Is(err, tt.want) {
				t.Errorf("FormatError() = %v, want chain containing %v", err, tt.want)
			}
		})
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     []string
		expected string
	}{
		{"empty path", nil, ""},
		{"single element", []string{"name"}, "name"},
		{"nested path", []string{"network", "port"}, "network.port"},
		{"array index", []string{"artifacts", "sources", "0", "src"}, "artifacts.sources[0].src"},
		{"trailing index", []string{"entrypoint", "args", "1"}, "entrypoint.args[1]"},
		{"leading digits are a key", []string{"0", "a"}, "0.a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatPath(tt.path); got != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := CheckFileSize(make([]byte, 10), 10, "a.cue"); err != nil {
		t.Errorf("unexpected error at limit: %v", err)
	}
	err := CheckFileSize(make([]byte, 11), 10, "a.cue")
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("expected size error, got %v", err)
	}
}
