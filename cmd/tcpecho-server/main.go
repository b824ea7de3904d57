// File: cmd/tcpecho-server/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// tcpecho-server echoes back whatever each client sends, serving every
// connection from a single readiness-multiplexed loop.

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/momentics/tcpecho/api"
	"github.com/momentics/tcpecho/control"
	"github.com/momentics/tcpecho/server"
	"github.com/momentics/tcpecho/transport/tcp"
)

type options struct {
	bind       string
	port       int
	backlog    int
	bufferSize int
	maxEvents  int
	cpu        int
	adminAddr  string
	logLevel   string
}

func addFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.bind, "bind", "127.0.0.1", "literal IP address to listen on")
	fs.IntVar(&o.port, "port", 9000, "TCP port to listen on")
	fs.IntVar(&o.backlog, "backlog", tcp.DefaultBacklog, "listen backlog")
	fs.IntVar(&o.bufferSize, "buffer-size", server.DefaultBufferSize, "bytes read per readiness event")
	fs.IntVar(&o.maxEvents, "max-events", server.DefaultMaxEvents, "readiness events handled per wake-up")
	fs.IntVar(&o.cpu, "cpu", -1, "pin the loop thread to this CPU; -1 disables pinning")
	fs.StringVar(&o.adminAddr, "admin-addr", "", "serve /metrics, /live, /ready and /debug/state on this address; empty disables")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level")
}

func buildConfig(o *options) (*server.Config, error) {
	if o.port < 0 || o.port > 65535 {
		return nil, api.Configurationf("port range should be in [0, 65535]")
	}
	cfg := server.DefaultConfig()
	cfg.ListenAddr = net.JoinHostPort(o.bind, strconv.Itoa(o.port))
	cfg.Backlog = o.backlog
	cfg.BufferSize = o.bufferSize
	cfg.MaxEvents = o.maxEvents
	cfg.CPU = o.cpu
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(o *options, stderr io.Writer) error {
	cfg, err := buildConfig(o)
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
	log := logrus.NewEntry(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	srv, err := server.NewServer(cfg,
		server.WithLogger(log),
		server.WithMetrics(control.NewServerMetrics(reg)),
		server.WithProbes(probes),
	)
	if err != nil {
		return errors.Wrap(err, "start server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if o.adminAddr != "" {
		admin := control.NewAdmin(reg, probes)
		admin.AddReadinessCheck("serving", func() error {
			if !srv.Serving() {
				return errors.New("echo loop not running")
			}
			return nil
		})
		go func() {
			if err := admin.ListenAndServe(ctx, o.adminAddr, log); err != nil {
				log.WithError(err).Error("admin endpoint stopped")
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			log.WithField("signal", sig.String()).Info("stopping")
			if err := srv.Shutdown(); err != nil {
				log.WithError(err).Warn("shutdown")
			}
		case <-ctx.Done():
		}
	}()

	return srv.Serve()
}

func newRootCommand(stderr io.Writer) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "tcpecho-server [flags]",
		Short:         "Echo back whatever TCP clients send",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o, stderr)
		},
	}
	cmd.SetErr(stderr)
	addFlags(cmd.Flags(), o)
	return cmd
}

func main() {
	if err := newRootCommand(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
