package tcp

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"
)

// Listener is a bound TCP socket that is polled for pending connections
// instead of blocking in Accept.
type Listener struct {
	ln *net.TCPListener
}

// Listen binds addr and starts listening.
func Listen(addr netip.AddrPort) (*Listener, error) {
	ln, err := net.ListenTCP("tcp", net.TCPAddrFromAddrPort(addr))
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Accept returns the next pending connection, waiting at most wait for one.
// It returns a nil conn and nil error when nobody is waiting.
func (l *Listener) Accept(wait time.Duration) (net.Conn, error) {
	if err := l.ln.SetDeadline(time.Now().Add(wait)); err != nil {
		return nil, err
	}
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}
		return nil, err
	}
	_ = conn.SetNoDelay(true)
	return conn, nil
}

// Addr returns the bound address with the kernel-assigned port filled in.
func (l *Listener) Addr() netip.AddrPort {
	ap := l.ln.Addr().(*net.TCPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Close releases the bound socket.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Dial connects to host:port.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return conn, nil
}
