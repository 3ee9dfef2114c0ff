// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"testing"
)

func TestParsePortMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec    string
		want    PortMapping
		wantStr string
		wantErr bool
	}{
		{spec: "8080:8000", want: PortMapping{HostPort: 8080, ContainerPort: 8000, Protocol: "tcp"}, wantStr: "8080:8000/tcp"},
		{spec: "127.0.0.1:8080:8000/tcp", want: PortMapping{HostIP: "127.0.0.1", HostPort: 8080, ContainerPort: 8000, Protocol: "tcp"}, wantStr: "127.0.0.1:8080:8000/tcp"},
		{spec: "5353:53/udp", want: PortMapping{HostPort: 5353, ContainerPort: 53, Protocol: "udp"}, wantStr: "5353:53/udp"},
		{spec: "8000", wantErr: true},
		{spec: "8000-8001:8000-8001", wantErr: true},
		{spec: "abc:8000", wantErr: true},
		{spec: "0:8000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePortMapping(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPortMapping) {
					t.Fatalf("ParsePortMapping(%q) error = %v, want ErrInvalidPortMapping", tt.spec, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePortMapping(%q): %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("ParsePortMapping(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
			if got.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", got.String(), tt.wantStr)
			}
		})
	}
}

func TestPortMappingValidate(t *testing.T) {
	t.Parallel()

	if err := (PortMapping{HostPort: 8000, ContainerPort: 8000, Protocol: "sctp"}).Validate(); !errors.Is(err, ErrInvalidPortMapping) {
		t.Errorf("sctp: error = %v", err)
	}
	if err := (PortMapping{HostPort: 8000}).Validate(); !errors.Is(err, ErrInvalidPortMapping) {
		t.Errorf("missing container port: error = %v", err)
	}
}
