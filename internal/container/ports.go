// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/docker/go-connections/nat"

	"github.com/svcpack/svcpack/pkg/types"
)

// ErrInvalidPortMapping is the sentinel error wrapped by InvalidPortMappingError.
var ErrInvalidPortMapping = errors.New("invalid port mapping")

type (
	// PortMapping publishes a container port on the host.
	PortMapping struct {
		// HostIP restricts the binding; empty binds all host interfaces.
		HostIP        string
		HostPort      types.ListenPort
		ContainerPort types.ListenPort
		// Protocol is tcp or udp; empty means tcp.
		Protocol string
	}

	// InvalidPortMappingError is returned when a PortMapping has invalid fields.
	InvalidPortMappingError struct {
		Value  PortMapping
		Reason string
	}
)

// Validate requires both ports to be declared and a known protocol.
func (p PortMapping) Validate() error {
	if err := p.HostPort.ValidateDeclared(); err != nil {
		return &InvalidPortMappingError{Value: p, Reason: "host port: " + err.Error()}
	}
	if err := p.ContainerPort.ValidateDeclared(); err != nil {
		return &InvalidPortMappingError{Value: p, Reason: "container port: " + err.Error()}
	}
	if _, err := p.natPort(); err != nil {
		return &InvalidPortMappingError{Value: p, Reason: err.Error()}
	}
	return nil
}

// String returns the -p argument ("[ip:]host:container/proto").
func (p PortMapping) String() string {
	port, err := p.natPort()
	if err != nil {
		return fmt.Sprintf("%d:%d/%s", p.HostPort, p.ContainerPort, p.Protocol)
	}
	host := p.HostPort.String()
	if p.HostIP != "" {
		host = p.HostIP + ":" + host
	}
	return host + ":" + string(port)
}

func (p PortMapping) natPort() (nat.Port, error) {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	if proto != "tcp" && proto != "udp" {
		return "", fmt.Errorf("unsupported protocol %q (valid: tcp, udp)", proto)
	}
	return nat.NewPort(proto, p.ContainerPort.String())
}

// ParsePortMapping parses "[ip:]host:container[/proto]". Ranges are rejected:
// svcpack publishes exactly one port.
func ParsePortMapping(spec string) (PortMapping, error) {
	mappings, err := nat.ParsePortSpec(spec)
	if err != nil {
		return PortMapping{}, fmt.Errorf("%w: %q: %w", ErrInvalidPortMapping, spec, err)
	}
	if len(mappings) != 1 {
		return PortMapping{}, fmt.Errorf("%w: %q: port ranges are not supported", ErrInvalidPortMapping, spec)
	}

	m := mappings[0]
	hostPort, err := strconv.Atoi(m.Binding.HostPort)
	if err != nil {
		return PortMapping{}, fmt.Errorf("%w: %q: host port is required", ErrInvalidPortMapping, spec)
	}
	p := PortMapping{
		HostIP:        m.Binding.HostIP,
		HostPort:      types.ListenPort(hostPort),
		ContainerPort: types.ListenPort(m.Port.Int()),
		Protocol:      m.Port.Proto(),
	}
	return p, p.Validate()
}

// Error implements the error interface.
func (e *InvalidPortMappingError) Error() string {
	return fmt.Sprintf("invalid port mapping %d:%d: %s", e.Value.HostPort, e.Value.ContainerPort, e.Reason)
}

// Unwrap returns ErrInvalidPortMapping for errors.Is() compatibility.
func (e *InvalidPortMappingError) Unwrap() error { return ErrInvalidPortMapping }
