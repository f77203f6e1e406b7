package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/omochice/simple-socket/internal/config"
	"github.com/omochice/simple-socket/internal/logging"
	"github.com/omochice/simple-socket/pkg/protocol"
	"github.com/omochice/simple-socket/pkg/server"
)

var rootCmd = &cobra.Command{
	Use:   "simple-socket-server",
	Short: "Listen for delimiter-framed messages on every local address",
	Long: `Listen for delimiter-framed messages on one port across every viable local
network address. Configuration can be set via command line flags, a config file
or environment variables of the form SIMPLESOCKET_<FLAG> (e.g. SIMPLESOCKET_PORT=9000).`,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return config.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(config.InitConfig)
	config.AddCommonFlags(rootCmd)
	config.AddServerFlags(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	if err := logging.Init(viper.GetString("log-level")); err != nil {
		return err
	}
	log := logger.GetLogger("server")

	cfg, err := config.GetServerConfig()
	if err != nil {
		return err
	}
	srv := server.New(cfg)

	srv.OnClientConnected(func(p protocol.Peer) {
		log.Infof("%s connected", p.RemoteAddr())
	})
	srv.OnClientDisconnected(func(p protocol.Peer) {
		log.Infof("%s disconnected", p.RemoteAddr())
	})

	echo := viper.GetBool("echo")
	srv.OnDelimiterMessage(func(m *protocol.Message) {
		log.Infof("%s: %s", m.RemoteAddr(), m.String())
		if !echo {
			return
		}
		if err := m.ReplyLine(m.String()); err != nil {
			log.Warningf("failed to echo to %s: %v", m.RemoteAddr(), err)
		}
	})
	srv.OnData(func(m *protocol.Message) {
		log.Debugf("%s: %d bytes without delimiter", m.RemoteAddr(), len(m.Data))
	})

	if err := start(srv); err != nil {
		return err
	}
	defer srv.Stop()

	for _, ep := range srv.ListeningEndpoints() {
		log.Infof("listening on %s", ep)
	}

	if addr := viper.GetString("metrics-addr"); addr != "" {
		metricsSrv := serveMetrics(addr, srv, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Infof("received signal %v, shutting down", sig)
	return nil
}

func start(srv *server.Server) error {
	port := viper.GetInt("port")

	if bind := viper.GetString("bind"); bind != "" {
		addr, err := netip.ParseAddr(bind)
		if err != nil {
			return fmt.Errorf("invalid --bind address %q: %w", bind, err)
		}
		return srv.StartAddr(addr, port)
	}

	if name := viper.GetString("family"); name != "" {
		family, err := config.ParseFamily(name)
		if err != nil {
			return err
		}
		return srv.StartFamily(port, family)
	}

	return srv.StartAll(port, viper.GetBool("strict"))
}

func serveMetrics(addr string, srv *server.Server, log logger.ILogger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		srv.Metrics().WritePrometheus(w)
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("serving metrics on http://%s/metrics", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	return httpSrv
}
