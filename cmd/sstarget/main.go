// Command sstarget simulates a SimpleSerial target: it runs the dispatch
// loop with a small demo firmware over TCP or a serial port.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coastalwhite/simpleserial/internal/config"
	"github.com/coastalwhite/simpleserial/target"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile     string
		listen      string
		serialPath  string
		baudRate    int
		protocol    string
		ack         bool
		readTimeout time.Duration
		resync      bool
		metrics     string
	)

	cmd := &cobra.Command{
		Use:   "sstarget",
		Short: "Simulated SimpleSerial target",
		Long: `sstarget answers SimpleSerial requests like a ChipWhisperer target
running simpleserial-base: 'k' loads a 16-byte key, 'p' encrypts a 16-byte
block and 'x' clears the key. 'v' (and 'w' with 2.0) are built in.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultTarget()
			if cfgFile != "" {
				loaded, err := config.LoadTarget(cfgFile)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Listen = listen
			}
			if flags.Changed("serial") {
				cfg.Serial = serialPath
			}
			if flags.Changed("baud") {
				cfg.BaudRate = baudRate
			}
			if flags.Changed("protocol") {
				v, err := config.ParseProtocol(protocol)
				if err != nil {
					return err
				}
				cfg.Protocol = v
			}
			if flags.Changed("ack") {
				cfg.Ack = ack
			}
			if flags.Changed("read-timeout") {
				cfg.ReadTimeout = readTimeout
			}
			if flags.Changed("resync") {
				cfg.Resync = resync
			}
			if flags.Changed("metrics") {
				cfg.Metrics = metrics
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "TOML configuration file")
	flags.StringVar(&listen, "listen", "", "TCP listen address")
	flags.StringVar(&serialPath, "serial", "", "serve a serial port instead of TCP")
	flags.IntVar(&baudRate, "baud", 0, "serial baud rate")
	flags.StringVarP(&protocol, "protocol", "p", "", "protocol revision: 1.0, 1.1 or 2.0")
	flags.BoolVar(&ack, "ack", false, "send 'z' acknowledgments with protocol 1.0")
	flags.DurationVar(&readTimeout, "read-timeout", 0, "per-byte timeout inside a request")
	flags.BoolVar(&resync, "resync", false, "skip to the next frame terminator after a rejected frame")
	flags.StringVar(&metrics, "metrics", "", "listen address of the Prometheus /metrics endpoint")
	return cmd
}

func run(ctx context.Context, cfg config.Target) error {
	logger := cfg.Logging.Logger(os.Stderr)

	reg := target.NewRegistry()
	fw := &firmware{}
	if err := fw.register(reg, cfg.Protocol); err != nil {
		return err
	}

	srv := &server{cfg: cfg, reg: reg, stats: &dispatchStats{}, logger: logger}

	if cfg.Metrics != "" {
		httpSrv := &http.Server{
			Addr:              cfg.Metrics,
			Handler:           metricsHandler(srv.stats),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer httpSrv.Shutdown(context.Background())
		logger.Info("metrics", "addr", cfg.Metrics)
	}

	if cfg.Serial != "" {
		return srv.serveSerial(ctx)
	}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	return srv.serveTCP(ctx, ln)
}
