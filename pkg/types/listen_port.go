// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrInvalidListenPort is the sentinel error wrapped by InvalidListenPortError.
	ErrInvalidListenPort = errors.New("invalid listen port")

	// ErrUndeclaredPort is returned when a port that must be declared is zero.
	ErrUndeclaredPort = errors.New("port must be declared")
)

type (
	// ListenPort represents a TCP port a service listens on.
	// The zero value (0) means "not set"; callers decide whether that
	// falls back to another value or is an error (see ValidateDeclared).
	ListenPort int

	// InvalidListenPortError is returned when a ListenPort value is
	// outside the valid range (0 or 1-65535).
	InvalidListenPortError struct {
		Value ListenPort
	}
)

// String returns the decimal string representation of the ListenPort.
func (p ListenPort) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error if the ListenPort is outside 0-65535.
func (p ListenPort) Validate() error {
	if p < 0 || p > 65535 {
		return &InvalidListenPortError{Value: p}
	}
	return nil
}

// ValidateDeclared is like Validate but also rejects the zero value.
// Declared ports are part of the network contract and can never be "auto".
func (p ListenPort) ValidateDeclared() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p == 0 {
		return fmt.Errorf("%w: got 0", ErrUndeclaredPort)
	}
	return nil
}

// IsSet reports whether the port has a non-zero value.
func (p ListenPort) IsSet() bool { return p != 0 }

// Or returns p when set, fallback otherwise.
func (p ListenPort) Or(fallback ListenPort) ListenPort {
	if p.IsSet() {
		return p
	}
	return fallback
}

// Error implements the error interface for InvalidListenPortError.
func (e *InvalidListenPortError) Error() string {
	return fmt.Sprintf("invalid listen port %d: must be in range 1-65535", e.Value)
}

// Unwrap returns ErrInvalidListenPort for errors.Is() compatibility.
func (e *InvalidListenPortError) Unwrap() error { return ErrInvalidListenPort }
