package server

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrNotStarted is returned when an operation needs a running server.
	ErrNotStarted = errors.New("server is not started")

	// ErrInvalidPort is returned for ports outside 0..65535.
	ErrInvalidPort = errors.New("invalid port")
)

// BindError reports that one local address could not be bound.
type BindError struct {
	Addr netip.AddrPort
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// AllInterfacesOccupiedError reports that no candidate address could be
// bound. Nothing is listening afterwards.
type AllInterfacesOccupiedError struct {
	Port     int
	Failures []error
}

func (e *AllInterfacesOccupiedError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("no local address available for port %d", e.Port)
	}
	return fmt.Sprintf("all %d local addresses are occupied on port %d", len(e.Failures), e.Port)
}

func (e *AllInterfacesOccupiedError) Unwrap() []error {
	return e.Failures
}

// PartialBindError reports that a strict start bound only some addresses.
// The listeners in Bound were stopped again before it was returned.
type PartialBindError struct {
	Port     int
	Bound    []netip.AddrPort
	Failures []error
}

func (e *PartialBindError) Error() string {
	return fmt.Sprintf("bound %d of %d local addresses on port %d", len(e.Bound), len(e.Bound)+len(e.Failures), e.Port)
}

func (e *PartialBindError) Unwrap() []error {
	return e.Failures
}

// Fault is a failure swallowed inside a listener loop.
type Fault struct {
	Listener netip.AddrPort
	// Peer is the remote address involved, or empty.
	Peer string
	Err  error
}

func (f Fault) Error() string {
	if f.Peer == "" {
		return fmt.Sprintf("listener %s: %v", f.Listener, f.Err)
	}
	return fmt.Sprintf("listener %s, peer %s: %v", f.Listener, f.Peer, f.Err)
}
