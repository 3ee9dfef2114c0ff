// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"slices"
	"testing"
)

func TestParseRequirement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantName   string
		wantExtras []string
		wantSpecs  []Specifier
		wantURL    string
		wantMarker string
	}{
		{
			name:     "bare name",
			input:    "fastapi",
			wantName: "fastapi",
		},
		{
			name:      "pinned",
			input:     "fastapi==0.115.0",
			wantName:  "fastapi",
			wantSpecs: []Specifier{{OpEqual, "0.115.0"}},
		},
		{
			name:       "extras and range",
			input:      "uvicorn[standard] >=0.30, <1",
			wantName:   "uvicorn",
			wantExtras: []string{"standard"},
			wantSpecs:  []Specifier{{OpGreaterEqual, "0.30"}, {OpLess, "1"}},
		},
		{
			name:       "marker",
			input:      `tomli>=2.0; python_version < "3.11"`,
			wantName:   "tomli",
			wantSpecs:  []Specifier{{OpGreaterEqual, "2.0"}},
			wantMarker: `python_version < "3.11"`,
		},
		{
			name:      "parenthesized",
			input:     "requests (~=2.31)",
			wantName:  "requests",
			wantSpecs: []Specifier{{OpCompatible, "2.31"}},
		},
		{
			name:     "direct reference",
			input:    "mylib @ https://example.com/mylib-1.0.tar.gz",
			wantName: "mylib",
			wantURL:  "https://example.com/mylib-1.0.tar.gz",
		},
		{
			name:      "arbitrary equality",
			input:     "legacy===foobar",
			wantName:  "legacy",
			wantSpecs: []Specifier{{OpArbitrary, "foobar"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, err := ParseRequirement(tt.input)
			if err != nil {
				t.Fatalf("ParseRequirement(%q): %v", tt.input, err)
			}
			if req.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", req.Name, tt.wantName)
			}
			if !slices.Equal(req.Extras, tt.wantExtras) {
				t.Errorf("Extras = %v, want %v", req.Extras, tt.wantExtras)
			}
			if !slices.Equal(req.Specifiers, tt.wantSpecs) {
				t.Errorf("Specifiers = %v, want %v", req.Specifiers, tt.wantSpecs)
			}
			if req.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", req.URL, tt.wantURL)
			}
			if req.Marker != tt.wantMarker {
				t.Errorf("Marker = %q, want %q", req.Marker, tt.wantMarker)
			}
		})
	}
}

func TestParseRequirementInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"",
		"==1.0",
		"pkg >=",
		"pkg ^1.0",
		"pkg >=1.*",
		"pkg @ ",
	} {
		_, err := ParseRequirement(input)
		if !errors.Is(err, ErrInvalidRequirement) {
			t.Errorf("ParseRequirement(%q) error = %v, want ErrInvalidRequirement", input, err)
		}
	}
}

func TestRequirementIsPinned(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"fastapi==0.115.0":           true,
		"legacy===foobar":            true,
		"mylib @ https://x/y.tar.gz": true,
		"fastapi":                    false,
		"fastapi>=0.100":             false,
		"fastapi==0.*":               false,
	}
	for input, want := range tests {
		req, err := ParseRequirement(input)
		if err != nil {
			t.Fatalf("ParseRequirement(%q): %v", input, err)
		}
		if got := req.IsPinned(); got != want {
			t.Errorf("IsPinned(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNormalizedName(t *testing.T) {
	t.Parallel()

	req := Requirement{Name: "Python_Multipart"}
	if got := req.NormalizedName(); got != "python-multipart" {
		t.Errorf("NormalizedName() = %q, want %q", got, "python-multipart")
	}
	req = Requirement{Name: "zope.interface"}
	if got := req.NormalizedName(); got != "zope-interface" {
		t.Errorf("NormalizedName() = %q, want %q", got, "zope-interface")
	}
}
