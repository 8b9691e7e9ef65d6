package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coastalwhite/simpleserial"
	"github.com/coastalwhite/simpleserial/wire"
	"github.com/spf13/cobra"
)

const shellHelp = `Commands:
  send <cmd> [hex]    send a command, read the acknowledgment
  reply <cmd> [hex]   send a command, read an 'r' line first (1.x)
  <cmd><hex>          shorthand for reply, e.g. p000102
  version             protocol revision of the target
  list                registered commands (2.0)
  stats               client and pool statistics
  help, quit`

type statsRecord struct {
	Requests     uint64
	Completed    uint64
	StatusErrors uint64
	Errors       uint64
	Links        int32
	IdleLinks    int32
}

func newShellCmd(a *app) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect()
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "SimpleSerial %s shell, %s\n%s\n", a.cfg.Protocol, strings.Join(a.cfg.Targets, ", "), shellHelp)

			scanner := bufio.NewScanner(a.in)
			for {
				fmt.Fprint(a.out, "> ")
				if !scanner.Scan() {
					break
				}

				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "quit" || line == "exit" {
					break
				}

				if err := a.shellLine(cmd.Context(), client, key, line); err != nil {
					fmt.Fprintln(a.out, "error:", err)
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "selects the target when several are configured")
	return cmd
}

func (a *app) shellLine(ctx context.Context, client *simpleserial.Client, key, line string) error {
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case "help":
		fmt.Fprintln(a.out, shellHelp)
		return nil

	case "send", "reply":
		if len(parts) < 2 || len(parts) > 3 {
			return fmt.Errorf("usage: %s <cmd> [hex]", parts[0])
		}
		hex := ""
		if len(parts) == 3 {
			hex = parts[2]
		}
		return a.shellSend(ctx, client, key, parts[1], hex, parts[0] == "reply")

	case "version":
		v, err := client.Version(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, v)
		return nil

	case "list":
		ids, err := client.ListCommands(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, string(ids))
		return nil

	case "stats":
		s := client.Stats()
		rec := statsRecord{
			Requests:     s.Requests,
			Completed:    s.Completed,
			StatusErrors: s.StatusErrors,
			Errors:       s.Errors,
		}
		for _, p := range client.AllPoolStats() {
			rec.Links += p.PoolStats.TotalConns
			rec.IdleLinks += p.PoolStats.IdleConns
		}
		a.print(rec)
		return nil
	}

	if len(parts) != 1 {
		return fmt.Errorf("unknown command %q, try help", parts[0])
	}
	return a.shellSend(ctx, client, key, line[:1], line[1:], true)
}

func (a *app) shellSend(ctx context.Context, client *simpleserial.Client, key, cmdArg, hex string, reply bool) error {
	id, err := parseCommand(cmdArg)
	if err != nil {
		return err
	}
	data, err := parseData(hex)
	if err != nil {
		return err
	}

	res, err := client.Do(ctx, simpleserial.Request{Key: key, Cmd: id, Data: data, ExpectReply: reply})
	var serr *wire.StatusError
	if err != nil && !errors.As(err, &serr) {
		return err
	}
	a.print(newResultRecord(id, res))
	return nil
}
