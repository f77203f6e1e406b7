package server

import (
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/omochice/simple-socket/internal/metrics"
	"github.com/omochice/simple-socket/internal/netif"
	"github.com/omochice/simple-socket/internal/transport/tcp"
	"github.com/omochice/simple-socket/pkg/protocol"
)

// Transports a Server can speak on accepted sockets.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
	// TransportAuto serves TCP and WebSocket peers on the same port.
	TransportAuto = "auto"
)

const (
	DefaultPollInterval     = 10 * time.Millisecond
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultSniffTimeout     = 50 * time.Millisecond

	// acceptWait bounds how long one pass waits for a pending connection.
	acceptWait = time.Millisecond
)

// Config configures a Server and every Listener it starts.
type Config struct {
	// Codec sets the delimiter, text encoding and trim flag of messages. The
	// zero Codec means protocol.DefaultCodec.
	Codec protocol.Codec

	// PollInterval is the sleep between two passes of a listener loop.
	PollInterval time.Duration

	// ProbeTimeout bounds the read-readiness part of the liveness probe.
	ProbeTimeout time.Duration

	// Transport is TransportTCP, TransportWebSocket or TransportAuto.
	Transport string

	// HandshakeTimeout bounds the WebSocket upgrade of an accepted socket.
	HandshakeTimeout time.Duration

	// SniffTimeout bounds how long TransportAuto waits for a peer's first
	// bytes. The listener loop is blocked meanwhile.
	SniffTimeout time.Duration

	// Source lists the local addresses Start binds. Defaults to netif.Local.
	Source netif.Source

	// Logger receives loop diagnostics. Defaults to the "server/listener" logger.
	Logger logger.ILogger

	// Metrics counts loop activity. Defaults to a fresh recorder.
	Metrics *metrics.Recorder
}

// DefaultConfig returns a TCP configuration with the default codec.
func DefaultConfig() Config {
	return Config{
		Codec:            protocol.DefaultCodec(),
		PollInterval:     DefaultPollInterval,
		ProbeTimeout:     tcp.DefaultProbeTimeout,
		Transport:        TransportTCP,
		HandshakeTimeout: DefaultHandshakeTimeout,
		SniffTimeout:     DefaultSniffTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Codec.Encoding == nil && c.Codec.Delimiter == 0 && !c.Codec.Trim {
		c.Codec = protocol.DefaultCodec()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = tcp.DefaultProbeTimeout
	}
	if c.Transport == "" {
		c.Transport = TransportTCP
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.SniffTimeout <= 0 {
		c.SniffTimeout = DefaultSniffTimeout
	}
	if c.Source == nil {
		c.Source = netif.Local
	}
	if c.Logger == nil {
		c.Logger = logger.GetLogger("server/listener")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New("server")
	}
	return c
}
