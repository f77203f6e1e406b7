package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding/charmap"

	"github.com/omochice/simple-socket/internal/netif"
	"github.com/omochice/simple-socket/pkg/client"
	"github.com/omochice/simple-socket/pkg/server"
)

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{in: "0x13", want: 0x13},
		{in: "19", want: 19},
		{in: `\n`, want: '\n'},
		{in: `\r`, want: '\r'},
		{in: `\t`, want: '\t'},
		{in: `\0`, want: 0},
		{in: "|", want: '|'},
		{in: "7", want: '7'},
		{in: "0x1ff", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelimiter(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDelimiter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseDelimiter(%q) = %#x, want %#x", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseEncoding(t *testing.T) {
	enc, err := ParseEncoding("windows-1252")
	if err != nil {
		t.Fatalf("ParseEncoding() error = %v", err)
	}
	if enc != charmap.Windows1252 {
		t.Errorf("ParseEncoding(windows-1252) = %v", enc)
	}

	if _, err := ParseEncoding("klingon"); err == nil {
		t.Error("ParseEncoding(klingon) returned nil error")
	}
	if enc, err := ParseEncoding(""); err != nil || enc == nil {
		t.Errorf("ParseEncoding(\"\") = %v, %v; want UTF-8", enc, err)
	}
}

func TestParseFamily(t *testing.T) {
	for in, want := range map[string]netif.Family{"": netif.AnyFamily, "IPv4": netif.IPv4, "ipv6": netif.IPv6} {
		got, err := ParseFamily(in)
		if err != nil || got != want {
			t.Errorf("ParseFamily(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseFamily("ipx"); err == nil {
		t.Error("ParseFamily(ipx) returned nil error")
	}
}

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line %q longer than %d", line, Wrap)
		}
	}
}

func newCommand(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	AddCommonFlags(cmd)
	AddServerFlags(cmd)
	AddClientFlags(cmd)
	// a nil slice would make cobra fall back to os.Args
	cmd.SetArgs(append([]string{}, args...))
	return cmd
}

func bind(t *testing.T, args ...string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := newCommand(args...)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if err := BindCommandFlags(cmd); err != nil {
		t.Fatalf("BindCommandFlags() error = %v", err)
	}
}

func TestGetServerConfig(t *testing.T) {
	bind(t, "--delimiter", `\n`, "--trim", "--transport", "ws", "--poll-interval", "5ms")

	cfg, err := GetServerConfig()
	if err != nil {
		t.Fatalf("GetServerConfig() error = %v", err)
	}
	if cfg.Codec.Delimiter != '\n' || !cfg.Codec.Trim {
		t.Errorf("codec = %+v", cfg.Codec)
	}
	if cfg.Transport != server.TransportWebSocket {
		t.Errorf("Transport = %q, want ws", cfg.Transport)
	}
	if cfg.PollInterval != 5*time.Millisecond {
		t.Errorf("PollInterval = %v, want 5ms", cfg.PollInterval)
	}
}

func TestGetServerConfig_InvalidTransport(t *testing.T) {
	bind(t, "--transport", "carrier-pigeon")

	if _, err := GetServerConfig(); err == nil {
		t.Error("GetServerConfig() returned nil error for an unknown transport")
	}
}

func TestGetClientConfig(t *testing.T) {
	bind(t, "--network", "udp", "--encoding", "iso-8859-1")

	cfg, err := GetClientConfig()
	if err != nil {
		t.Fatalf("GetClientConfig() error = %v", err)
	}
	if cfg.Network != client.NetworkUDP {
		t.Errorf("Network = %q, want udp", cfg.Network)
	}
	if cfg.Codec.Delimiter != 0x13 {
		t.Errorf("Delimiter = %#x, want 0x13", cfg.Codec.Delimiter)
	}
	if cfg.Codec.Encoding != charmap.Windows1252 {
		// WHATWG maps iso-8859-1 onto windows-1252
		t.Errorf("Encoding = %v, want windows-1252", cfg.Codec.Encoding)
	}
}

func TestEnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("SIMPLESOCKET_DELIMITER", "|")
	bind(t)
	InitConfig()

	codec, err := GetCodec()
	if err != nil {
		t.Fatalf("GetCodec() error = %v", err)
	}
	if codec.Delimiter != '|' {
		t.Errorf("Delimiter = %q, want '|'", codec.Delimiter)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "socket.yaml")
	if err := os.WriteFile(path, []byte("delimiter: \"0x0a\"\nport: 4242\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	bind(t, "--config", path)

	if got := viper.GetInt("port"); got != 4242 {
		t.Errorf("port = %d, want 4242", got)
	}
	codec, err := GetCodec()
	if err != nil {
		t.Fatalf("GetCodec() error = %v", err)
	}
	if codec.Delimiter != '\n' {
		t.Errorf("Delimiter = %#x, want 0x0a", codec.Delimiter)
	}
}
