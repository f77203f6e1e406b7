// Package ws carries the delimited byte stream inside binary WebSocket
// messages using gobwas/ws. Message boundaries carry no meaning: the payloads
// are concatenated into one stream.
package ws

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts a WebSocket connection to peer.Conn. A background goroutine
// reads messages into a buffer so availability can be checked without blocking.
type Conn struct {
	conn       net.Conn
	rw         io.ReadWriter
	state      ws.State
	remoteAddr string

	mu     sync.Mutex
	buf    []byte
	hungUp bool

	closed  atomic.Bool
	writeMu sync.Mutex
}

// lockedWriter serializes control-frame replies with data writes.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func newConn(conn net.Conn, reader io.Reader, state ws.State) *Conn {
	c := &Conn{
		conn:       conn,
		state:      state,
		remoteAddr: conn.RemoteAddr().String(),
	}
	c.rw = struct {
		io.Reader
		io.Writer
	}{reader, &lockedWriter{mu: &c.writeMu, w: conn}}

	go c.readLoop()
	return c
}

// Accept performs the server side of the WebSocket handshake on an accepted
// connection.
func Accept(conn net.Conn, timeout time.Duration) (*Conn, error) {
	return AcceptReader(conn, conn, timeout)
}

// AcceptReader is Accept for a connection whose first bytes were already
// consumed into reader, which must yield them first.
func AcceptReader(conn net.Conn, reader io.Reader, timeout time.Duration) (*Conn, error) {
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}
	rw := struct {
		io.Reader
		io.Writer
	}{reader, conn}
	if _, err := ws.Upgrade(rw); err != nil {
		return nil, fmt.Errorf("failed to upgrade connection from %s: %w", conn.RemoteAddr(), err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return newConn(conn, reader, ws.StateServerSide), nil
}

// httpMethods are the request-line prefixes a handshake may start with.
var httpMethods = [][]byte{
	[]byte("GET "), []byte("POST"), []byte("PUT "), []byte("HEAD"),
	[]byte("OPTI"), []byte("PATC"), []byte("DELE"), []byte("CONN"),
}

// IsHandshake reports whether prefix, the first bytes a peer sent, starts an
// HTTP request rather than a raw delimited stream.
func IsHandshake(prefix []byte) bool {
	for _, m := range httpMethods {
		if bytes.HasPrefix(prefix, m) {
			return true
		}
	}
	return false
}

// Dial connects to ws://host:port/.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (*Conn, error) {
	dialer := ws.Dialer{Timeout: timeout}
	url := "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/"

	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	var reader io.Reader = conn
	if br != nil {
		reader = br
	}
	return newConn(conn, reader, ws.StateClientSide), nil
}

func (c *Conn) readLoop() {
	for {
		data, op, err := wsutil.ReadData(c.rw, c.state)
		if err != nil {
			c.mu.Lock()
			c.hungUp = true
			c.mu.Unlock()
			return
		}
		if op != ws.OpBinary && op != ws.OpText {
			continue
		}
		c.mu.Lock()
		c.buf = append(c.buf, data...)
		c.mu.Unlock()
	}
}

// Available implements peer.Conn.
func (c *Conn) Available() (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf), nil
}

// Alive implements peer.Conn.
func (c *Conn) Alive() bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !(c.hungUp && len(c.buf) == 0)
}

// Read implements peer.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buf) == 0 {
		if c.hungUp {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	if len(c.buf) == 0 {
		c.buf = nil
	}
	return n, nil
}

// Write implements peer.Conn. Each call is sent as one binary message.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := wsutil.WriteMessage(c.conn, c.state, ws.OpBinary, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements peer.Conn.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.writeMu.Lock()
	_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, nil)
	c.writeMu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements peer.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

