// Package client connects to a delimiter-framed message server and raises
// every completed message from a background read loop.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/omochice/simple-socket/internal/frame"
	"github.com/omochice/simple-socket/internal/metrics"
	"github.com/omochice/simple-socket/internal/peer"
	"github.com/omochice/simple-socket/internal/transport/tcp"
	"github.com/omochice/simple-socket/internal/transport/udp"
	"github.com/omochice/simple-socket/internal/transport/ws"
	"github.com/omochice/simple-socket/pkg/protocol"
)

// Client owns one outbound connection and the goroutine reading from it.
// Handlers run on that goroutine, one at a time, in arrival order.
type Client struct {
	cfg Config
	log logger.ILogger

	mu   sync.Mutex
	conn peer.Conn
	stop chan struct{}

	message peer.Event[*protocol.Message]
	data    peer.Event[*protocol.Message]
	fault   peer.Event[error]
}

// New creates an unconnected Client. Zero fields of cfg take their defaults.
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{cfg: cfg, log: cfg.Logger}
}

// Connect dials host:port within the configured dial timeout and starts the
// read loop. An existing connection is closed first.
func (c *Client) Connect(host string, port int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()
	return c.ConnectContext(ctx, host, port)
}

// ConnectContext is Connect bounded by ctx.
func (c *Client) ConnectContext(ctx context.Context, host string, port int) error {
	if host == "" {
		return &ConnectError{Host: host, Port: port, Err: errEmptyHost}
	}
	if port < 0 || port > 65535 {
		return &ConnectError{Host: host, Port: port, Err: fmt.Errorf("invalid port %d", port)}
	}

	conn, err := c.dial(ctx, host, port)
	if err != nil {
		return &ConnectError{Host: host, Port: port, Err: err}
	}

	c.Disconnect()

	stop := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.stop = stop
	c.mu.Unlock()

	c.cfg.Metrics.Connected()
	c.log.Infof("connected to %s over %s", conn.RemoteAddr(), c.cfg.Network)

	go c.run(conn, stop)
	return nil
}

func (c *Client) dial(ctx context.Context, host string, port int) (peer.Conn, error) {
	switch c.cfg.Network {
	case NetworkTCP:
		raw, err := tcp.Dial(ctx, host, port, c.cfg.DialTimeout)
		if err != nil {
			return nil, err
		}
		return tcp.NewConn(raw, c.cfg.ProbeTimeout), nil
	case NetworkWebSocket:
		conn, err := ws.Dial(ctx, host, port, c.cfg.DialTimeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case NetworkUDP:
		conn, err := udp.Dial(ctx, host, port, c.cfg.ProbeTimeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown network %q", c.cfg.Network)
	}
}

// Disconnect closes the connection if there is one. It does not wait for
// the read loop, so it may be called from a handler. Calling it again is a
// no-op.
func (c *Client) Disconnect() {
	if conn := c.current(); conn != nil {
		c.release(conn)
	}
}

// release closes conn and stops its loop unless conn was already replaced
// or released.
func (c *Client) release(conn peer.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	stop := c.stop
	c.conn, c.stop = nil, nil
	c.mu.Unlock()

	close(stop)
	if err := conn.Close(); err != nil {
		c.log.Debugf("close %s: %v", conn.RemoteAddr(), err)
	}
	c.cfg.Metrics.Disconnected()
	c.log.Infof("disconnected from %s", conn.RemoteAddr())
}

// Close is Disconnect, for use with defer and io.Closer.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

// IsConnected reports whether a connection is held.
func (c *Client) IsConnected() bool {
	return c.current() != nil
}

func (c *Client) current() peer.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Write sends data immediately.
func (c *Client) Write(data []byte) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to write to %s: %w", conn.RemoteAddr(), err)
	}
	return nil
}

// WriteString encodes and sends text. Empty text is a no-op.
func (c *Client) WriteString(text string) error {
	if text == "" {
		return nil
	}
	data, err := c.cfg.Codec.Encode(text)
	if err != nil {
		return err
	}
	return c.Write(data)
}

// WriteLine sends text terminated by the delimiter, which is only appended
// when text does not already end with it. Empty text is a no-op.
func (c *Client) WriteLine(text string) error {
	data, err := c.cfg.Codec.Line(text)
	if err != nil || data == nil {
		return err
	}
	return c.Write(data)
}

// WriteLineAndGetReply writes text as a line and waits up to timeout for the
// next inbound message, delimited or raw. The first message to arrive is
// returned whatever its content, so it is only meaningful with one
// outstanding request at a time.
//
// It must not be called from a notification handler: the handler blocks the
// read loop that would deliver the reply, so the call always times out.
func (c *Client) WriteLineAndGetReply(text string, timeout time.Duration) (*protocol.Message, error) {
	reply := make(chan *protocol.Message, 1)
	take := func(m *protocol.Message) {
		select {
		case reply <- m:
		default:
		}
	}
	defer c.message.Subscribe(take)()
	defer c.data.Subscribe(take)()

	if err := c.WriteLine(text); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m := <-reply:
		return m, nil
	case <-timer.C:
		return nil, ErrNoReply
	}
}

// OnDelimiterMessage registers fn for every completed message.
func (c *Client) OnDelimiterMessage(fn func(*protocol.Message)) (unsubscribe func()) {
	return c.message.Subscribe(fn)
}

// OnData registers fn for raw bursts: the bytes read in one pass that left
// a partial message behind.
func (c *Client) OnData(fn func(*protocol.Message)) (unsubscribe func()) {
	return c.data.Subscribe(fn)
}

// OnFault registers fn for failures swallowed by the read loop.
func (c *Client) OnFault(fn func(error)) (unsubscribe func()) {
	return c.fault.Subscribe(fn)
}

// Metrics returns the recorder counting this client's activity.
func (c *Client) Metrics() *metrics.Recorder {
	return c.cfg.Metrics
}

func (c *Client) run(conn peer.Conn, stop chan struct{}) {
	asm := frame.NewAssembler()
	timer := time.NewTimer(c.cfg.PollInterval)
	defer timer.Stop()

	dead := false
	for {
		if dead {
			c.log.Infof("connection to %s lost", conn.RemoteAddr())
			c.release(conn)
			return
		}

		c.guard(func() error {
			if !conn.Alive() {
				dead = true
			}
			return nil
		})
		c.guard(func() error {
			err := c.drain(conn, asm)
			if err != nil {
				dead = true
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
					return nil
				}
			}
			return err
		})

		timer.Reset(c.cfg.PollInterval)
		select {
		case <-stop:
			return
		case <-timer.C:
		}
	}
}

func (c *Client) drain(conn peer.Conn, asm *frame.Assembler) error {
	codec := c.cfg.Codec
	key := conn.RemoteAddr()

	read, err := frame.Drain(conn, asm, codec.Delimiter, func(payload []byte) {
		c.cfg.Metrics.Frame()
		c.guard(func() error {
			c.message.Emit(protocol.NewMessage(payload, conn, codec))
			return nil
		})
	})
	c.cfg.Metrics.BytesRead(len(read))

	if frame.EndsPartial(asm, key, read) {
		c.cfg.Metrics.Burst()
		c.guard(func() error {
			c.data.Emit(protocol.NewMessage(read, conn, codec))
			return nil
		})
	}
	return err
}

func (c *Client) guard(fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.report(fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		c.report(err)
	}
}

func (c *Client) report(err error) {
	c.cfg.Metrics.Fault()
	c.log.Warningf("read loop: %v", err)

	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("fault handler panicked: %v", r)
		}
	}()
	c.fault.Emit(err)
}
