package peer_test

import (
	"io"
	"sync"

	"github.com/omochice/simple-socket/internal/peer"
)

// mockConn is a mock implementation of peer.Conn for testing.
type mockConn struct {
	mu         sync.Mutex
	pending    []byte
	written    [][]byte
	dead       bool
	closed     bool
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{remoteAddr: addr}
}

func (m *mockConn) Available() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending), nil
}

func (m *mockConn) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && !(m.dead && len(m.pending) == 0)
}

func (m *mockConn) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *mockConn) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]byte, len(p))
	copy(copied, p)
	m.written = append(m.written, copied)
	return len(p), nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

// Compile-time check that mockConn implements peer.Conn
var _ peer.Conn = (*mockConn)(nil)
