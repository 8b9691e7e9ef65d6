package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coastalwhite/simpleserial/target"
	"github.com/coastalwhite/simpleserial/transport"
	"github.com/coastalwhite/simpleserial/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// startTarget serves a registry over TCP and returns its endpoint.
func startTarget(t *testing.T, version wire.Version) string {
	t.Helper()

	reg := target.NewRegistry()
	require.NoError(t, target.RegisterBuiltins(reg, version))
	if version.Binary() {
		require.NoError(t, reg.Register('p', 4, target.V2(func(_, _ byte, data []byte) (byte, []byte) {
			out := make([]byte, len(data))
			for i, b := range data {
				out[i] = ^b
			}
			return 0x00, out
		})))
		require.NoError(t, reg.Register('f', 0, target.V2(func(_, _ byte, _ []byte) (byte, []byte) {
			return 0x10, nil
		})))
	} else {
		require.NoError(t, reg.Register('p', 2, target.V1Reply(func(data []byte) (byte, []byte) {
			return 0x00, []byte{^data[0], ^data[1]}
		})))
		require.NoError(t, reg.Register('k', 2, target.V1(func([]byte) byte {
			return 0x00
		})))
		require.NoError(t, reg.Register('f', 0, target.V1Reply(func([]byte) (byte, []byte) {
			return 0x10, nil
		})))
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				stream := transport.NewStream(transport.NewConnLink(conn))
				defer stream.Close()
				d := target.NewDispatcher(reg, stream, stream, target.Config{Protocol: version, Resync: true})
				_ = d.Serve(context.Background())
			}()
		}
	}()

	return "tcp://" + ln.Addr().String()
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSend(t *testing.T) {
	endpoint := startTarget(t, wire.Version20)

	out, err := run(t, "", "-t", endpoint, "-o", "json", "send", "p", "00FF1020")
	require.NoError(t, err)

	var rec resultRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, resultRecord{Target: endpoint, Cmd: "p", Status: "ok", Data: "FF00EFDF"}, rec)
}

func TestSendStatusError(t *testing.T) {
	endpoint := startTarget(t, wire.Version20)

	out, err := run(t, "", "-t", endpoint, "-o", "yaml", "send", "f")
	var serr *wire.StatusError
	require.ErrorAs(t, err, &serr)

	var rec resultRecord
	require.NoError(t, yaml.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "status 0x10", rec.Status)
}

func TestSendText(t *testing.T) {
	endpoint := startTarget(t, wire.Version11)

	out, err := run(t, "", "-t", endpoint, "-p", "1.1", "send", "p", "0102")
	require.NoError(t, err)
	assert.Contains(t, out, "FEFD")
	assert.Contains(t, out, "Status:")
}

func TestSendTextStatusOnly(t *testing.T) {
	endpoint := startTarget(t, wire.Version11)

	out, err := run(t, "", "-t", endpoint, "-p", "1.1", "-o", "json", "send", "f")
	var serr *wire.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, wire.Status(0x10), serr.Status)

	var rec resultRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "status 0x10", rec.Status)
	assert.Empty(t, rec.Data)

	out, err = run(t, "", "-t", endpoint, "-p", "1.1", "-o", "json", "send", "k", "0102")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "ok", rec.Status)
}

func TestSendTextWithoutAck(t *testing.T) {
	endpoint := startTarget(t, wire.Version10)

	// No result line is awaited unless asked for.
	start := time.Now()
	_, err := run(t, "", "-t", endpoint, "-p", "1.0", "--timeout", "2s", "send", "k", "0102")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	out, err := run(t, "", "-t", endpoint, "-p", "1.0", "send", "p", "0102", "--reply")
	require.NoError(t, err)
	assert.Contains(t, out, "FEFD")
}

func TestSendArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		err  string
	}{
		{name: "long command", args: []string{"-t", "tcp://127.0.0.1:1", "send", "pp"}, err: "single character"},
		{name: "odd hex", args: []string{"-t", "tcp://127.0.0.1:1", "send", "p", "012"}, err: "012"},
		{name: "bad hex", args: []string{"-t", "tcp://127.0.0.1:1", "send", "p", "0G"}, err: "illegal"},
		{name: "no target", args: []string{"send", "p"}, err: "no target"},
		{name: "bad protocol", args: []string{"-p", "3.0", "send", "p"}, err: "unknown revision"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			require.ErrorContains(t, err, tt.err)
		})
	}
}

func TestVersionAndList(t *testing.T) {
	endpoint := startTarget(t, wire.Version20)

	out, err := run(t, "", "-t", endpoint, "-o", "json", "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "2.0"`)

	out, err = run(t, "", "-t", endpoint, "-o", "json", "list")
	require.NoError(t, err)
	assert.Contains(t, out, `"commands": "vwpf"`)
}

func TestPing(t *testing.T) {
	endpoint := startTarget(t, wire.Version20)

	out, err := run(t, "", "-t", endpoint, "-t", "tcp://127.0.0.1:1", "ping")
	require.ErrorContains(t, err, "1 of 2 targets failed")
	assert.Contains(t, out, endpoint)
}

func TestConfigFile(t *testing.T) {
	endpoint := startTarget(t, wire.Version11)

	path := filepath.Join(t.TempDir(), "ssctl.toml")
	content := "targets = [\"" + endpoint + "\"]\nprotocol = \"1.1\"\noutput = \"json\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	out, err := run(t, "", "--config", path, "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "1.1"`)

	// Flags win over the file.
	out, err = run(t, "", "--config", path, "-o", "yaml", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: \"1.1\"")
}

func TestShell(t *testing.T) {
	endpoint := startTarget(t, wire.Version20)

	input := strings.Join([]string{
		"p00010203",
		"send p 0A",
		"send x",
		"version",
		"list",
		"bogus command",
		"quit",
		"never read",
	}, "\n")

	out, err := run(t, input, "-t", endpoint, "shell")
	require.NoError(t, err)

	assert.Contains(t, out, "FFFEFDFC")
	assert.Contains(t, out, "F5")
	assert.Contains(t, out, "unknown command")
	assert.Contains(t, out, "2.0")
	assert.Contains(t, out, "vwpf")
	assert.Contains(t, out, `unknown command "bogus"`)
}

func TestTableFormatter(t *testing.T) {
	f := NewFormatter("table")

	out := f.Format([]pingRecord{{Target: "tcp://a"}, {Target: "tcp://b", Error: "timeout"}})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "TARGET"))
	assert.Contains(t, lines[2], "timeout")

	assert.Equal(t, "Nothing found.\n", f.Format([]portRecord{}))
	assert.Equal(t, "hello\n", f.Format("hello"))
}
