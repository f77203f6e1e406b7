// Package udp provides a connected UDP socket that presents received
// datagrams as one byte stream.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"
)

// maxDatagram is the largest UDP payload.
const maxDatagram = 64 * 1024

// Conn adapts a connected *net.UDPConn to peer.Conn. UDP has no connection
// state, so a Conn is alive until it is closed.
type Conn struct {
	conn       *net.UDPConn
	remoteAddr string
	wait       time.Duration
	pending    []byte
	scratch    []byte
	closed     atomic.Bool
}

// Dial creates a UDP socket connected to host:port. wait bounds how long
// Available blocks looking for a datagram.
func Dial(ctx context.Context, host string, port int, wait time.Duration) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}
	return NewConn(conn.(*net.UDPConn), wait), nil
}

// NewConn wraps a connected UDP socket.
func NewConn(conn *net.UDPConn, wait time.Duration) *Conn {
	if wait <= 0 {
		wait = time.Millisecond
	}
	return &Conn{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		wait:       wait,
		scratch:    make([]byte, maxDatagram),
	}
}

// Available implements peer.Conn. It pulls at most one datagram off the
// socket when nothing is pending.
func (c *Conn) Available() (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	if len(c.pending) > 0 {
		return len(c.pending), nil
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.wait)); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(c.scratch)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return 0, nil
		}
		// ICMP port-unreachable from an earlier send; the socket is still usable.
		if errors.Is(err, syscall.ECONNREFUSED) {
			return 0, nil
		}
		return 0, err
	}
	c.pending = append(c.pending, c.scratch[:n]...)
	return len(c.pending), nil
}

// Alive implements peer.Conn.
func (c *Conn) Alive() bool {
	return !c.closed.Load()
}

// Read implements peer.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	if len(c.pending) == 0 {
		c.pending = nil
	}
	return n, nil
}

// Write implements peer.Conn. Each call is sent as one datagram.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
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
