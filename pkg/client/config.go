package client

import (
	"time"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/omochice/simple-socket/internal/metrics"
	"github.com/omochice/simple-socket/internal/transport/tcp"
	"github.com/omochice/simple-socket/pkg/protocol"
)

// Networks a Client can connect over.
const (
	NetworkTCP       = "tcp"
	NetworkWebSocket = "ws"
	NetworkUDP       = "udp"
)

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultDialTimeout  = 10 * time.Second
)

// Config configures a Client.
type Config struct {
	// Codec frames and decodes messages. The zero Codec means
	// protocol.DefaultCodec.
	Codec protocol.Codec

	// Network is NetworkTCP, NetworkWebSocket or NetworkUDP.
	Network string

	PollInterval time.Duration
	ProbeTimeout time.Duration
	DialTimeout  time.Duration

	// Logger receives loop diagnostics. Defaults to the "client" logger.
	Logger logger.ILogger

	Metrics *metrics.Recorder
}

// DefaultConfig returns a TCP configuration with the default codec.
func DefaultConfig() Config {
	return Config{
		Codec:        protocol.DefaultCodec(),
		Network:      NetworkTCP,
		PollInterval: DefaultPollInterval,
		ProbeTimeout: tcp.DefaultProbeTimeout,
		DialTimeout:  DefaultDialTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Codec.Encoding == nil && c.Codec.Delimiter == 0 && !c.Codec.Trim {
		c.Codec = protocol.DefaultCodec()
	}
	if c.Network == "" {
		c.Network = NetworkTCP
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = tcp.DefaultProbeTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.GetLogger("client")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.New("client")
	}
	return c
}
