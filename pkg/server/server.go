// Package server listens for delimiter-framed messages on one port across
// every viable local address.
//
// Each bound address is served by its own listener goroutine that polls for
// new connections, detects disconnects and reassembles messages per peer.
// Notification handlers run synchronously on that goroutine. Handlers
// registered on a Server may therefore be called concurrently by different
// listeners, but never concurrently for the same peer.
package server

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/omochice/simple-socket/internal/metrics"
	"github.com/omochice/simple-socket/internal/netif"
	"github.com/omochice/simple-socket/pkg/protocol"
)

var plog = logger.GetLogger("server")

// Server aggregates the listeners bound for one logical server.
//
// Start, Stop and their variants are expected to be called from one
// controlling goroutine.
type Server struct {
	cfg    Config
	events events

	mu        sync.Mutex
	listeners []*listener
}

// New creates a stopped Server. Zero fields of cfg take their defaults.
func New(cfg Config) *Server {
	return &Server{cfg: cfg.withDefaults()}
}

// Start binds port on every ranked local address and fails unless all of
// them could be bound.
func (s *Server) Start(port int) error {
	return s.StartAll(port, true)
}

// StartAll binds port on every ranked local address. With strictAllNics a
// partial bind is undone and reported as PartialBindError; otherwise the
// addresses that bound are kept.
func (s *Server) StartAll(port int, strictAllNics bool) error {
	if err := validPort(port); err != nil {
		return err
	}
	ranked, err := s.cfg.Source()
	if err != nil {
		return fmt.Errorf("failed to enumerate local addresses: %w", err)
	}
	return s.bind(port, ranked, strictAllNics)
}

// StartFamily binds port on the ranked local addresses of one family,
// skipping the ones that fail.
func (s *Server) StartFamily(port int, family netif.Family) error {
	if err := validPort(port); err != nil {
		return err
	}
	ranked, err := s.cfg.Source()
	if err != nil {
		return fmt.Errorf("failed to enumerate local addresses: %w", err)
	}
	return s.bind(port, netif.Filter(ranked, family), false)
}

// StartAddr binds port on a single address.
func (s *Server) StartAddr(addr netip.Addr, port int) error {
	if err := validPort(port); err != nil {
		return err
	}
	l, err := s.listen(netip.AddrPortFrom(addr, uint16(port)))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
	return nil
}

func (s *Server) bind(port int, ranked []netif.Ranked, strict bool) error {
	requested := port
	var started []*listener
	var failures []error

	for _, r := range ranked {
		l, err := s.listen(netip.AddrPortFrom(r.Addr, uint16(port)))
		if err != nil {
			plog.Debugf("skipping %s: %v", r.Addr, err)
			failures = append(failures, err)
			continue
		}
		// later addresses share the port the kernel picked for the first one
		if port == 0 {
			port = int(l.addr.Port())
		}
		started = append(started, l)
	}

	if len(started) == 0 {
		return &AllInterfacesOccupiedError{Port: requested, Failures: failures}
	}

	if len(failures) > 0 {
		if strict {
			bound := make([]netip.AddrPort, len(started))
			for i, l := range started {
				bound[i] = l.addr
				l.Stop()
			}
			return &PartialBindError{Port: port, Bound: bound, Failures: failures}
		}
		plog.Warningf("listening on %d of %d addresses for port %d", len(started), len(ranked), port)
	}

	s.mu.Lock()
	s.listeners = append(s.listeners, started...)
	s.mu.Unlock()
	return nil
}

func (s *Server) listen(addr netip.AddrPort) (*listener, error) {
	switch s.cfg.Transport {
	case TransportTCP, TransportWebSocket, TransportAuto:
	default:
		return nil, &BindError{Addr: addr, Err: fmt.Errorf("unknown transport %q", s.cfg.Transport)}
	}
	return startListener(addr, s.cfg, &s.events)
}

// Stop stops every listener and returns once all bound sockets are released.
// It must not be called from a notification handler.
func (s *Server) Stop() {
	s.mu.Lock()
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, l := range listeners {
		l.stopOnce.Do(func() { close(l.stop) })
	}
	for _, l := range listeners {
		<-l.done
	}
}

// IsStarted reports whether at least one listener is running.
func (s *Server) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners) > 0
}

func (s *Server) snapshot() []*listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*listener(nil), s.listeners...)
}

// ConnectedClientsCount sums the live peers of every listener.
func (s *Server) ConnectedClientsCount() int {
	n := 0
	for _, l := range s.snapshot() {
		n += l.count()
	}
	return n
}

// Broadcast writes data to every connected peer. A failed write does not
// stop delivery to the others; all failures are joined in the result.
func (s *Server) Broadcast(data []byte) error {
	listeners := s.snapshot()
	if len(listeners) == 0 {
		return ErrNotStarted
	}
	if len(data) == 0 {
		return nil
	}

	var errs []error
	for _, l := range listeners {
		if err := l.broadcast(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BroadcastString encodes text and broadcasts it. Empty text is a no-op.
func (s *Server) BroadcastString(text string) error {
	if text == "" {
		return nil
	}
	data, err := s.cfg.Codec.Encode(text)
	if err != nil {
		return err
	}
	return s.Broadcast(data)
}

// BroadcastLine broadcasts text terminated by the delimiter. Empty text is
// a no-op.
func (s *Server) BroadcastLine(text string) error {
	data, err := s.cfg.Codec.Line(text)
	if err != nil || data == nil {
		return err
	}
	return s.Broadcast(data)
}

// LocalAddresses returns every local unicast address, best first.
func (s *Server) LocalAddresses() ([]netip.Addr, error) {
	ranked, err := s.cfg.Source()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate local addresses: %w", err)
	}
	return netif.Addrs(ranked), nil
}

// ListeningEndpoints returns the bound address:port pairs, best address first.
func (s *Server) ListeningEndpoints() []netip.AddrPort {
	listeners := s.snapshot()
	endpoints := make([]netip.AddrPort, len(listeners))
	for i, l := range listeners {
		endpoints[i] = l.addr
	}

	scores := map[netip.Addr]int{}
	if ranked, err := s.cfg.Source(); err == nil {
		for _, r := range ranked {
			scores[r.Addr] = r.Score
		}
	}
	score := func(a netip.Addr) int {
		if v, ok := scores[a]; ok {
			return v
		}
		return netif.Score(netif.Candidate{Addr: a}, "")
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return score(endpoints[i].Addr()) > score(endpoints[j].Addr())
	})
	return endpoints
}

// ListeningAddresses returns the distinct bound addresses, best first.
func (s *Server) ListeningAddresses() []netip.Addr {
	var addrs []netip.Addr
	seen := map[netip.Addr]struct{}{}
	for _, ep := range s.ListeningEndpoints() {
		if _, ok := seen[ep.Addr()]; ok {
			continue
		}
		seen[ep.Addr()] = struct{}{}
		addrs = append(addrs, ep.Addr())
	}
	return addrs
}

// Metrics returns the recorder counting this server's activity.
func (s *Server) Metrics() *metrics.Recorder {
	return s.cfg.Metrics
}

// OnClientConnected registers fn for newly accepted peers.
func (s *Server) OnClientConnected(fn func(protocol.Peer)) (unsubscribe func()) {
	return s.events.connected.Subscribe(fn)
}

// OnClientDisconnected registers fn for peers that went away or were closed
// by Stop.
func (s *Server) OnClientDisconnected(fn func(protocol.Peer)) (unsubscribe func()) {
	return s.events.disconnected.Subscribe(fn)
}

// OnDelimiterMessage registers fn for every completed message.
func (s *Server) OnDelimiterMessage(fn func(*protocol.Message)) (unsubscribe func()) {
	return s.events.message.Subscribe(fn)
}

// OnData registers fn for raw bursts: all bytes read from a peer in one pass
// that left a partial message behind.
func (s *Server) OnData(fn func(*protocol.Message)) (unsubscribe func()) {
	return s.events.data.Subscribe(fn)
}

// OnFault registers fn for failures swallowed by the listener loops.
func (s *Server) OnFault(fn func(Fault)) (unsubscribe func()) {
	return s.events.fault.Subscribe(fn)
}

func validPort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}
