package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/omochice/simple-socket/internal/config"
	"github.com/omochice/simple-socket/internal/logging"
	"github.com/omochice/simple-socket/pkg/client"
	"github.com/omochice/simple-socket/pkg/protocol"
)

var rootCmd = &cobra.Command{
	Use:   "simple-socket-client",
	Short: "Send delimiter-framed lines to a server and print what comes back",
	Long: `Connect to a delimiter-framed message server. Lines read from stdin are sent
as messages and every received message is printed. With --request a single line
is sent and the first reply printed. Configuration can be set via command line
flags, a config file or environment variables of the form SIMPLESOCKET_<FLAG>.`,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return config.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(config.InitConfig)
	config.AddCommonFlags(rootCmd)
	config.AddClientFlags(rootCmd)
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
	log := logger.GetLogger("client")

	cfg, err := config.GetClientConfig()
	if err != nil {
		return err
	}
	c := client.New(cfg)

	host, port := viper.GetString("host"), viper.GetInt("port")
	if err := c.Connect(host, port); err != nil {
		return err
	}
	defer c.Disconnect()

	if request := viper.GetString("request"); request != "" {
		reply, err := c.WriteLineAndGetReply(request, viper.GetDuration("timeout"))
		if errors.Is(err, client.ErrNoReply) {
			return fmt.Errorf("no reply from %s:%d within %v", host, port, viper.GetDuration("timeout"))
		}
		if err != nil {
			return err
		}
		fmt.Println(reply.String())
		return nil
	}

	c.OnDelimiterMessage(func(m *protocol.Message) {
		fmt.Println(m.String())
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("Type your messages (or 'quit' to exit):")
	for {
		select {
		case sig := <-sigChan:
			log.Infof("received signal %v, disconnecting", sig)
			return nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "quit" {
				return nil
			}
			if !c.IsConnected() {
				return fmt.Errorf("connection to %s:%d lost", host, port)
			}
			if err := c.WriteLine(line); err != nil {
				log.Errorf("failed to send: %v", err)
			}
		}
	}
}
