package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/coastalwhite/simpleserial"
	"github.com/coastalwhite/simpleserial/transport"
	"github.com/coastalwhite/simpleserial/wire"
	"github.com/spf13/cobra"
)

type resultRecord struct {
	Target string `json:"target" yaml:"target"`
	Cmd    string `json:"cmd" yaml:"cmd"`
	Status string `json:"status" yaml:"status"`
	Data   string `json:"data" yaml:"data"`
}

type versionRecord struct {
	Target  string `json:"target" yaml:"target"`
	Version string `json:"version" yaml:"version"`
}

type commandsRecord struct {
	Key      string `json:"key" yaml:"key"`
	Commands string `json:"commands" yaml:"commands"`
}

type pingRecord struct {
	Target string `json:"target" yaml:"target"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newResultRecord(cmd byte, res *simpleserial.Result) resultRecord {
	return resultRecord{
		Target: res.Target,
		Cmd:    string(rune(cmd)),
		Status: res.Status.String(),
		Data:   string(wire.AppendHex(nil, res.Data)),
	}
}

// parseCommand checks that s is a single command identifier.
func parseCommand(s string) (byte, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("command must be a single character, got %q", s)
	}
	return s[0], nil
}

func parseData(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("data %q: %w", s, wire.ErrShortHex)
	}
	data, err := wire.DecodeHex([]byte(s), len(s)/2)
	if err != nil {
		return nil, fmt.Errorf("data %q: %w", s, err)
	}
	return data, nil
}

func newSendCmd(a *app) *cobra.Command {
	var (
		key    string
		subCmd uint8
		reply  bool
	)

	cmd := &cobra.Command{
		Use:   "send <cmd> [hex-data]",
		Short: "Send one command and print the response",
		Example: `  ssctl -t serial:///dev/ttyACM0 send p 000102030405060708090A0B0C0D0E0F
  ssctl -t tcp://127.0.0.1:4000 -p 1.1 send k 2B7E151628AED2A6ABF7158809CF4F3C
  ssctl -t tcp://127.0.0.1:4000 -p 1.0 send p 00112233445566778899AABBCCDDEEFF --reply`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCommand(args[0])
			if err != nil {
				return err
			}
			var data []byte
			if len(args) == 2 {
				if data, err = parseData(args[1]); err != nil {
					return err
				}
			}

			client, err := a.connect()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("reply") {
				reply = a.defaultReply()
			}

			res, err := client.Do(cmd.Context(), simpleserial.Request{
				Key:         key,
				Cmd:         id,
				SubCmd:      subCmd,
				Data:        data,
				ExpectReply: reply,
			})
			var serr *wire.StatusError
			if err != nil && !errors.As(err, &serr) {
				return err
			}

			a.print(newResultRecord(id, res))
			return err
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "selects the target when several are configured")
	cmd.Flags().Uint8Var(&subCmd, "scmd", 0, "sub-command (2.0 only)")
	cmd.Flags().BoolVar(&reply, "reply", false, "read an 'r' line before the acknowledgment (1.x, default: on when acknowledgments are)")
	return cmd
}

// defaultReply tells whether send reads a result line when --reply is not
// given. Acknowledged text protocols can tell a missing result from a late
// one; 1.0 without acks cannot, and 2.0 ignores the setting.
func (a *app) defaultReply() bool {
	switch a.cfg.Protocol {
	case wire.Version20:
		return false
	case wire.Version11:
		return true
	default:
		return a.cfg.Ack
	}
}

func newVersionCmd(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the protocol revision reported by the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect()
			if err != nil {
				return err
			}

			v, err := client.Version(cmd.Context(), key)
			if err != nil {
				return err
			}
			// The client routes with DefaultSelectTarget.
			endpoint, _ := simpleserial.DefaultSelectTarget(key, a.cfg.Targets)
			a.print(versionRecord{Target: endpoint, Version: v.String()})
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "selects the target when several are configured")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the command identifiers registered on the target (2.0)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect()
			if err != nil {
				return err
			}

			ids, err := client.ListCommands(cmd.Context(), key)
			if err != nil {
				return err
			}
			a.print(commandsRecord{Key: key, Commands: string(ids)})
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "selects the target when several are configured")
	return cmd
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that every target answers a version request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			records := make([]pingRecord, 0, len(a.cfg.Targets))

			// One client per target, so that each failure is reported.
			for _, endpoint := range a.cfg.Targets {
				rec := pingRecord{Target: endpoint}
				client, err := simpleserial.NewClient(simpleserial.NewStaticTargets(endpoint), simpleserial.Config{
					Protocol: a.cfg.Protocol,
					Ack:      a.cfg.Ack,
					Timeout:  a.cfg.Timeout,
				})
				if err == nil {
					err = client.Ping(cmd.Context())
					client.Close()
				}
				if err != nil {
					rec.Error = err.Error()
					failed++
				}
				records = append(records, rec)
			}

			a.print(records)
			if failed > 0 {
				return fmt.Errorf("%d of %d targets failed", failed, len(records))
			}
			return nil
		},
	}
}

type portRecord struct {
	Name          string `json:"name" yaml:"name"`
	VID           string `json:"vid" yaml:"vid"`
	PID           string `json:"pid" yaml:"pid"`
	Product       string `json:"product" yaml:"product"`
	ChipWhisperer string `json:"chipwhisperer" yaml:"chipwhisperer"`
}

func newPortsCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports, ChipWhisperer boards first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}

			var cw, other []portRecord
			for _, p := range ports {
				rec := portRecord{
					Name:          p.Name,
					VID:           p.VID,
					PID:           p.PID,
					Product:       p.Product,
					ChipWhisperer: strconv.FormatBool(p.ChipWhisperer()),
				}
				if p.ChipWhisperer() {
					cw = append(cw, rec)
				} else if all {
					other = append(other, rec)
				}
			}

			a.print(append(cw, other...))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include ports of other vendors")
	return cmd
}
