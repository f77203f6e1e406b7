package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/omochice/simple-socket/internal/frame"
	"github.com/omochice/simple-socket/internal/metrics"
	"github.com/omochice/simple-socket/internal/peer"
	"github.com/omochice/simple-socket/internal/transport/tcp"
	"github.com/omochice/simple-socket/internal/transport/ws"
	"github.com/omochice/simple-socket/pkg/protocol"
)

// events are the notifications shared by every listener of one Server.
type events struct {
	connected    peer.Event[protocol.Peer]
	disconnected peer.Event[protocol.Peer]
	message      peer.Event[*protocol.Message]
	data         peer.Event[*protocol.Message]
	fault        peer.Event[Fault]
}

// listener drives one bound socket. Its registry and assembler are touched
// only by its own goroutine, except for Count and Each.
type listener struct {
	id      string
	addr    netip.AddrPort
	ln      *tcp.Listener
	cfg     Config
	events  *events
	log     logger.ILogger
	metrics *metrics.Recorder

	registry *peer.Registry
	asm      *frame.Assembler

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// startListener binds addr and starts the loop on its own goroutine.
func startListener(addr netip.AddrPort, cfg Config, ev *events) (*listener, error) {
	ln, err := tcp.Listen(addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}

	l := &listener{
		id:       uuid.NewString()[:8],
		addr:     ln.Addr(),
		ln:       ln,
		cfg:      cfg,
		events:   ev,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		registry: peer.NewRegistry(),
		asm:      frame.NewAssembler(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	l.log.Infof("[%s] listening on %s (%s)", l.id, l.addr, cfg.Transport)

	go l.run()
	return l, nil
}

// Stop asks the loop to finish its pass and waits until the socket is released.
// It must not be called from a notification handler.
func (l *listener) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

func (l *listener) run() {
	defer close(l.done)

	timer := time.NewTimer(l.cfg.PollInterval)
	defer timer.Stop()

	for {
		l.pass()

		timer.Reset(l.cfg.PollInterval)
		select {
		case <-l.stop:
			l.shutdown()
			return
		case <-timer.C:
		}
	}
}

// pass runs one iteration: reap, accept, probe and drain. Every step and
// every peer is fault-isolated.
func (l *listener) pass() {
	l.guard("", func() error {
		l.reap()
		return nil
	})
	l.guard("", l.accept)

	conns := l.registry.Snapshot()
	for _, conn := range conns {
		l.guard(conn.RemoteAddr(), func() error {
			if !conn.Alive() {
				l.registry.MarkDead(conn)
			}
			return nil
		})
	}
	for _, conn := range conns {
		l.guard(conn.RemoteAddr(), func() error {
			return l.drain(conn)
		})
	}
}

func (l *listener) reap() {
	for _, conn := range l.registry.Reap() {
		l.disconnect(conn)
	}
}

func (l *listener) accept() error {
	raw, err := l.ln.Accept(acceptWait)
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	if raw == nil {
		return nil
	}

	conn, err := l.wrap(raw)
	if err != nil {
		_ = raw.Close()
		return err
	}

	l.registry.Add(conn)
	l.metrics.Connected()
	l.log.Debugf("[%s] %s connected", l.id, conn.RemoteAddr())
	l.events.connected.Emit(conn)
	return nil
}

func (l *listener) wrap(raw net.Conn) (peer.Conn, error) {
	switch l.cfg.Transport {
	case TransportWebSocket:
		conn, err := ws.Accept(raw, l.cfg.HandshakeTimeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case TransportAuto:
		return l.sniff(raw)
	default:
		return tcp.NewConn(raw, l.cfg.ProbeTimeout), nil
	}
}

// sniff peeks at the first bytes of raw and upgrades it when they start an
// HTTP request. A peer that stays silent for SniffTimeout is plain TCP.
func (l *listener) sniff(raw net.Conn) (peer.Conn, error) {
	reader := bufio.NewReader(raw)

	if err := raw.SetReadDeadline(time.Now().Add(l.cfg.SniffTimeout)); err != nil {
		return nil, err
	}
	prefix, _ := reader.Peek(4)
	if err := raw.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}

	if ws.IsHandshake(prefix) {
		conn, err := ws.AcceptReader(raw, reader, l.cfg.HandshakeTimeout)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return tcp.NewConnWithReader(raw, reader, l.cfg.ProbeTimeout), nil
}

func (l *listener) drain(conn peer.Conn) error {
	codec := l.cfg.Codec
	key := conn.RemoteAddr()

	// a failing handler must not lose the rest of the bytes already read
	read, err := frame.Drain(conn, l.asm, codec.Delimiter, func(payload []byte) {
		l.metrics.Frame()
		l.guard(key, func() error {
			l.events.message.Emit(protocol.NewMessage(payload, conn, codec))
			return nil
		})
	})
	l.metrics.BytesRead(len(read))

	if frame.EndsPartial(l.asm, key, read) {
		l.metrics.Burst()
		l.guard(key, func() error {
			l.events.data.Emit(protocol.NewMessage(read, conn, codec))
			return nil
		})
	}

	if err != nil {
		l.registry.MarkDead(conn)
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

func (l *listener) disconnect(conn peer.Conn) {
	_ = conn.Close()
	l.asm.Forget(conn.RemoteAddr())
	l.metrics.Disconnected()
	l.log.Debugf("[%s] %s disconnected", l.id, conn.RemoteAddr())
	l.events.disconnected.Emit(conn)
}

// shutdown closes every peer before releasing the bound socket.
func (l *listener) shutdown() {
	for _, conn := range l.registry.Drain() {
		l.guard(conn.RemoteAddr(), func() error {
			l.disconnect(conn)
			return nil
		})
	}
	if err := l.ln.Close(); err != nil {
		l.log.Warningf("[%s] failed to close %s: %v", l.id, l.addr, err)
	}
	l.log.Infof("[%s] stopped listening on %s", l.id, l.addr)
}

// guard runs fn, turning returned errors and panics into faults.
func (l *listener) guard(remote string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			l.fault(remote, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		l.fault(remote, err)
	}
}

func (l *listener) fault(remote string, err error) {
	f := Fault{Listener: l.addr, Peer: remote, Err: err}
	l.metrics.Fault()
	l.log.Warningf("[%s] %v", l.id, f)

	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("[%s] fault handler panicked: %v", l.id, r)
		}
	}()
	l.events.fault.Emit(f)
}

func (l *listener) count() int {
	return l.registry.Count()
}

func (l *listener) broadcast(data []byte) error {
	var errs []error
	l.registry.Each(func(conn peer.Conn) bool {
		if _, err := conn.Write(data); err != nil {
			errs = append(errs, fmt.Errorf("write to %s: %w", conn.RemoteAddr(), err))
		}
		return true
	})
	return errors.Join(errs...)
}
