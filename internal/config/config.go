// Package config loads the command-line, environment and file configuration
// of the server and client binaries into library configurations.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/omochice/simple-socket/internal/netif"
	"github.com/omochice/simple-socket/pkg/client"
	"github.com/omochice/simple-socket/pkg/protocol"
	"github.com/omochice/simple-socket/pkg/server"
)

const (
	// Wrap is the number of characters to wrap the help text at
	Wrap int = 50

	// EnvPrefix prefixes every environment variable, e.g. SIMPLESOCKET_PORT.
	EnvPrefix = "simplesocket"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var lines []string
	var line strings.Builder

	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > Wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// InitConfig loads .env files and enables SIMPLESOCKET_* environment variables.
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// AddCommonFlags adds the codec, timing and logging flags shared by both binaries.
func AddCommonFlags(cmd *cobra.Command) {
	key := "config"
	cmd.PersistentFlags().String(key, "", WrapString("Optional configuration file (yaml, json, toml, env, ...) whose keys match the flag names"))

	key = "port"
	cmd.PersistentFlags().Int(key, 8910, WrapString("The TCP port to listen on or connect to"))

	key = "delimiter"
	cmd.PersistentFlags().String(key, "0x13", WrapString(`The byte terminating each message: a number (0x13, 19), an escape (\n, \r, \t) or a single character`))

	key = "encoding"
	cmd.PersistentFlags().String(key, "utf-8", WrapString("The text encoding of messages (any WHATWG encoding label, e.g. utf-8, iso-8859-1, windows-1252)"))

	key = "trim"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether to strip leading and trailing whitespace from received text"))

	key = "poll-interval"
	cmd.PersistentFlags().Duration(key, 10*time.Millisecond, WrapString("The sleep between two passes of the read loop"))

	key = "probe-timeout"
	cmd.PersistentFlags().Duration(key, time.Millisecond, WrapString("How long the liveness probe waits for read readiness"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// AddServerFlags adds the flags of the server binary.
func AddServerFlags(cmd *cobra.Command) {
	key := "bind"
	cmd.Flags().String(key, "", WrapString("Listen on this single address only. By default every ranked local address is bound"))

	key = "family"
	cmd.Flags().String(key, "", WrapString("Restrict binding to one address family (ipv4, ipv6); failing addresses are skipped"))

	key = "strict"
	cmd.Flags().Bool(key, true, WrapString("Fail unless every local address could be bound (ignored with --bind and --family)"))

	key = "transport"
	cmd.Flags().String(key, server.TransportTCP, WrapString("The transport spoken on accepted sockets (tcp, ws, or auto to detect WebSocket handshakes per peer)"))

	key = "echo"
	cmd.Flags().Bool(key, false, WrapString("Reply to every message with the same text"))

	key = "metrics-addr"
	cmd.Flags().String(key, "", WrapString("Serve Prometheus metrics on this address (e.g. localhost:9100); disabled when empty"))
}

// AddClientFlags adds the flags of the client binary.
func AddClientFlags(cmd *cobra.Command) {
	key := "host"
	cmd.Flags().String(key, "localhost", WrapString("The host to connect to"))

	key = "network"
	cmd.Flags().String(key, client.NetworkTCP, WrapString("The network to connect over (tcp, ws, udp)"))

	key = "request"
	cmd.Flags().String(key, "", WrapString("Send this line, print the reply and exit"))

	key = "timeout"
	cmd.Flags().Duration(key, 5*time.Second, WrapString("How long --request waits for a reply"))

	key = "dial-timeout"
	cmd.Flags().Duration(key, 10*time.Second, WrapString("How long connecting may take"))
}

// BindCommandFlags binds a command's flags to viper and reads the file named
// by --config, if any.
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return nil
}

// ParseDelimiter parses a delimiter given as a number, an escape or a single
// character.
func ParseDelimiter(s string) (byte, error) {
	switch s {
	case `\n`:
		return '\n', nil
	case `\r`:
		return '\r', nil
	case `\t`:
		return '\t', nil
	case `\0`:
		return 0, nil
	}
	if len(s) == 1 {
		return s[0], nil
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid delimiter %q: want a byte value, an escape or a single character", s)
	}
	return byte(n), nil
}

// ParseEncoding resolves a WHATWG encoding label. An empty label is UTF-8.
func ParseEncoding(name string) (encoding.Encoding, error) {
	if name == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc, nil
}

// ParseFamily parses an address family name. An empty name is any family.
func ParseFamily(name string) (netif.Family, error) {
	switch strings.ToLower(name) {
	case "", "any":
		return netif.AnyFamily, nil
	case "ipv4", "4", "inet":
		return netif.IPv4, nil
	case "ipv6", "6", "inet6":
		return netif.IPv6, nil
	default:
		return 0, fmt.Errorf("invalid address family %q: must be one of ipv4, ipv6", name)
	}
}

// GetCodec reads the message codec from viper.
func GetCodec() (protocol.Codec, error) {
	delim, err := ParseDelimiter(viper.GetString("delimiter"))
	if err != nil {
		return protocol.Codec{}, err
	}
	enc, err := ParseEncoding(viper.GetString("encoding"))
	if err != nil {
		return protocol.Codec{}, err
	}
	return protocol.Codec{
		Encoding:  enc,
		Delimiter: delim,
		Trim:      viper.GetBool("trim"),
	}, nil
}

// GetServerConfig reads the server library configuration from viper.
func GetServerConfig() (server.Config, error) {
	codec, err := GetCodec()
	if err != nil {
		return server.Config{}, err
	}

	cfg := server.DefaultConfig()
	cfg.Codec = codec
	cfg.PollInterval = viper.GetDuration("poll-interval")
	cfg.ProbeTimeout = viper.GetDuration("probe-timeout")

	switch t := viper.GetString("transport"); t {
	case "", server.TransportTCP, server.TransportWebSocket, server.TransportAuto:
		if t != "" {
			cfg.Transport = t
		}
	default:
		return server.Config{}, fmt.Errorf("invalid transport %q: must be one of tcp, ws, auto", t)
	}
	return cfg, nil
}

// GetClientConfig reads the client library configuration from viper.
func GetClientConfig() (client.Config, error) {
	codec, err := GetCodec()
	if err != nil {
		return client.Config{}, err
	}

	cfg := client.DefaultConfig()
	cfg.Codec = codec
	cfg.PollInterval = viper.GetDuration("poll-interval")
	cfg.ProbeTimeout = viper.GetDuration("probe-timeout")
	if d := viper.GetDuration("dial-timeout"); d > 0 {
		cfg.DialTimeout = d
	}

	switch n := viper.GetString("network"); n {
	case "", client.NetworkTCP, client.NetworkWebSocket, client.NetworkUDP:
		if n != "" {
			cfg.Network = n
		}
	default:
		return client.Config{}, fmt.Errorf("invalid network %q: must be one of tcp, ws, udp", n)
	}
	return cfg, nil
}
