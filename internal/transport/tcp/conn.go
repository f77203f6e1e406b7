// Package tcp provides the TCP transport: connections with a liveness probe
// and a listener that can be polled for pending peers.
package tcp

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// DefaultProbeTimeout bounds how long the read-readiness probe waits.
const DefaultProbeTimeout = time.Millisecond

// Conn adapts net.Conn to peer.Conn.
type Conn struct {
	conn         net.Conn
	raw          syscall.RawConn
	reader       *bufio.Reader
	remoteAddr   string
	probeTimeout time.Duration
	closed       atomic.Bool
	writeMu      sync.Mutex
}

// NewConn wraps a net.Conn. When the conn exposes its file descriptor the probe
// asks the kernel directly; otherwise it peeks with a short read deadline.
func NewConn(conn net.Conn, probeTimeout time.Duration) *Conn {
	return NewConnWithReader(conn, bufio.NewReader(conn), probeTimeout)
}

// NewConnWithReader wraps a net.Conn whose first bytes were already peeked
// into reader. Those bytes are delivered before anything else.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader, probeTimeout time.Duration) *Conn {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	c := &Conn{
		conn:         conn,
		reader:       reader,
		remoteAddr:   conn.RemoteAddr().String(),
		probeTimeout: probeTimeout,
	}
	if sc, ok := conn.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			c.raw = raw
		}
	}
	return c
}

// Available implements peer.Conn.
func (c *Conn) Available() (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	if n := c.reader.Buffered(); n > 0 {
		return n, nil
	}
	return c.pending()
}

// Alive implements peer.Conn.
// The peer is dead when the probe reports the socket readable while nothing
// is available (an orderly shutdown or reset), or when the conn was closed.
func (c *Conn) Alive() bool {
	if c.closed.Load() {
		return false
	}
	readable, err := c.readable(c.probeTimeout)
	if err != nil {
		return false
	}
	if !readable {
		return true
	}
	n, err := c.Available()
	return err == nil && n > 0
}

// Read implements peer.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	return c.reader.Read(p)
}

// Write implements peer.Conn. Concurrent writers are serialized.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(p)
}

// Close implements peer.Conn.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// RemoteAddr implements peer.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// peekPending reports buffered bytes after waiting briefly for the first one.
func (c *Conn) peekPending(wait time.Duration) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return 0, err
	}
	defer func() {
		_ = c.conn.SetReadDeadline(time.Time{})
	}()

	if _, err := c.reader.Peek(1); err != nil {
		if isTimeout(err) {
			return 0, nil
		}
		return c.reader.Buffered(), err
	}
	return c.reader.Buffered(), nil
}

// peekReadable mirrors a read-readiness poll: EOF and data both count as readable.
func (c *Conn) peekReadable(wait time.Duration) (bool, error) {
	n, err := c.peekPending(wait)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, err
	}
	return n > 0, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
