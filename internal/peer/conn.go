// Package peer provides the connection contract shared by every transport and
// the per-listener bookkeeping of connected peers.
package peer

// Conn abstracts one established byte-stream endpoint (TCP, WebSocket or UDP).
// Conns are owned by a single read loop; only Write and RemoteAddr may be
// called from other goroutines.
type Conn interface {
	// Available reports how many bytes can be read without blocking.
	Available() (int, error)

	// Alive runs the liveness probe. A conn is dead when the probe reports a
	// hung-up peer and nothing is left to read, or when it is no longer connected.
	Alive() bool

	// Read reads bytes that Available reported.
	Read(p []byte) (int, error)

	// Write sends bytes to the peer.
	Write(p []byte) (int, error)

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address:port, used as the peer's key.
	RemoteAddr() string
}
