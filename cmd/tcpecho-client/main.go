// File: cmd/tcpecho-client/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// tcpecho-client connects to an echo server, sends a payload, verifies the
// echo and prints per-phase and round-trip timings.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/client"
	"github.com/momentics/tcpecho/transport/tcp"
)

type options struct {
	message     string
	count       int
	repeat      int
	packetDelay int
	repeatDelay int
	timeout     int
	ipv4        bool
	ipv6        bool
	logLevel    string
}

func addFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.message, "message", "m", "hello world", "payload sent in every packet (1..1024 bytes)")
	fs.IntVarP(&o.count, "count", "c", 1, "packets per connection; negative means forever")
	fs.IntVarP(&o.repeat, "repeat", "r", 1, "connections to make; 0 or negative means forever")
	fs.IntVarP(&o.packetDelay, "packet-delay", "d", 1000, "delay in ms between packets")
	fs.IntVarP(&o.repeatDelay, "repeat-delay", "D", 1000, "delay in ms between connections")
	fs.IntVarP(&o.timeout, "timeout", "t", 2000, "timeout in ms per operation; 0 or negative waits forever")
	fs.BoolVarP(&o.ipv4, "ipv4", "4", false, "force IPv4")
	fs.BoolVarP(&o.ipv6, "ipv6", "6", false, "force IPv6")
	fs.StringVar(&o.logLevel, "log-level", "warning", "diagnostic log level")
}

// buildConfig turns parsed flags and the HOST PORT arguments into a validated
// client configuration.
func buildConfig(o *options, args []string) (*client.Config, error) {
	if len(args) < 2 {
		return nil, api.Configurationf("require remote name and remote port")
	}
	if len(args) > 2 {
		return nil, api.Configurationf("too many arguments")
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, api.Configurationf("remote port format error: %q", args[1])
	}
	if port < 1 || port > 65535 {
		return nil, api.Configurationf("remote port range should be in [1, 65535]")
	}
	if o.ipv4 && o.ipv6 {
		return nil, api.Configurationf("force-ipv4 and force-ipv6 can not be set at the same time")
	}

	cfg := client.DefaultConfig()
	cfg.Host = args[0]
	cfg.Port = uint16(port)
	cfg.Payload = []byte(o.message)
	if cfg.Packets, err = client.PacketCount(o.count); err != nil {
		return nil, err
	}
	cfg.Repeats = client.RepeatCount(o.repeat)
	if o.packetDelay < 0 || o.repeatDelay < 0 {
		return nil, api.Configurationf("delays must not be negative")
	}
	cfg.PacketDelay = time.Duration(o.packetDelay) * time.Millisecond
	cfg.RepeatDelay = time.Duration(o.repeatDelay) * time.Millisecond
	cfg.Timeout = time.Duration(o.timeout) * time.Millisecond
	switch {
	case o.ipv4:
		cfg.Family = tcp.FamilyIPv4
	case o.ipv6:
		cfg.Family = tcp.FamilyIPv6
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "tcpecho-client [flags] HOST PORT",
		Short: "Test TCP connectivity and latency against an echo server",
		Long: "Connect to HOST PORT, send a payload, verify it is echoed back unchanged " +
			"and report resolution, connect and round-trip times.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(o, args)
			if err != nil {
				return err
			}
			level, err := logrus.ParseLevel(o.logLevel)
			if err != nil {
				return api.Configurationf("log level: %v", err)
			}
			logger := logrus.New()
			logger.SetOutput(stderr)
			logger.SetLevel(level)

			d, err := client.NewDriver(cfg,
				client.WithReporter(client.NewTextReporter(stdout, stderr)),
				client.WithLogger(logrus.NewEntry(logger)),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := d.Run(ctx); err != nil {
				logger.WithError(err).Debug("schedule interrupted")
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	addFlags(cmd.Flags(), o)
	return cmd
}

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
