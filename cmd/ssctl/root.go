package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/coastalwhite/simpleserial"
	"github.com/coastalwhite/simpleserial/internal/config"
	"github.com/spf13/cobra"
)

// app is the state shared by the subcommands, set up in PersistentPreRunE.
type app struct {
	in  io.Reader
	out io.Writer

	// Global flags
	cfgFile  string
	targets  []string
	protocol string
	timeout  time.Duration
	output   string
	ack      bool
	breaker  bool

	cfg       config.Host
	formatter Formatter
	client    *simpleserial.Client
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:   "ssctl",
		Short: "Send SimpleSerial commands to ChipWhisperer targets",
		Long: `ssctl sends SimpleSerial 1.0, 1.1 and 2.0 commands to targets reached
over a serial port (serial:///dev/ttyACM0?baud=115200) or TCP
(tcp://127.0.0.1:4000), and prints the responses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.client != nil {
				a.client.Close()
			}
		},
	}

	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "TOML configuration file")
	flags.StringSliceVarP(&a.targets, "target", "t", nil, "target endpoint (repeatable)")
	flags.StringVarP(&a.protocol, "protocol", "p", "", "protocol revision: 1.0, 1.1 or 2.0")
	flags.DurationVar(&a.timeout, "timeout", 0, "response timeout")
	flags.StringVarP(&a.output, "output", "o", "", "output format: table, json or yaml")
	flags.BoolVar(&a.ack, "ack", false, "expect 'z' acknowledgments with protocol 1.0")
	flags.BoolVar(&a.breaker, "breaker", false, "enable a circuit breaker per target")

	root.AddCommand(
		newSendCmd(a),
		newVersionCmd(a),
		newListCmd(a),
		newPingCmd(a),
		newPortsCmd(a),
		newShellCmd(a),
	)
	return root
}

// setup loads the configuration file, then applies the flags set on the
// command line over it.
func (a *app) setup(cmd *cobra.Command) error {
	a.cfg = config.DefaultHost()
	if a.cfgFile != "" {
		cfg, err := config.LoadHost(a.cfgFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		a.cfg.Targets = a.targets
	}
	if flags.Changed("protocol") {
		v, err := config.ParseProtocol(a.protocol)
		if err != nil {
			return err
		}
		a.cfg.Protocol = v
	}
	if flags.Changed("timeout") {
		a.cfg.Timeout = a.timeout
	}
	if flags.Changed("output") {
		a.cfg.Output = a.output
	}
	if flags.Changed("ack") {
		a.cfg.Ack = a.ack
	}
	if flags.Changed("breaker") {
		a.cfg.Breaker = a.breaker
	}

	a.formatter = NewFormatter(a.cfg.Output)
	return nil
}

// connect creates the client on first use.
func (a *app) connect() (*simpleserial.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if len(a.cfg.Targets) == 0 {
		return nil, errors.New("no target: use --target or set targets in the config file")
	}

	cfg := simpleserial.Config{
		Protocol: a.cfg.Protocol,
		Ack:      a.cfg.Ack,
		Timeout:  a.cfg.Timeout,
		Logger:   a.cfg.Logging.Logger(os.Stderr),
	}
	if a.cfg.Breaker {
		cfg.NewCircuitBreaker = simpleserial.NewCircuitBreakerConfig(1, time.Minute, 10*time.Second)
	}

	client, err := simpleserial.NewClient(simpleserial.NewStaticTargets(a.cfg.Targets...), cfg)
	if err != nil {
		return nil, err
	}
	a.client = client
	return client, nil
}

func (a *app) print(data any) {
	fmt.Fprint(a.out, a.formatter.Format(data))
}
