// Package config loads the TOML files of the ssctl and sstarget commands.
// Keys absent from a file keep their default.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/coastalwhite/simpleserial/wire"
)

// Logging selects the slog handler of a command.
type Logging struct {
	Level  slog.Level
	Format string // "text" or "json"
}

// Logger builds the logger described by l.
func (l Logging) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.Level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Host is the ssctl configuration.
type Host struct {
	Targets  []string
	Protocol wire.Version
	Ack      bool
	Timeout  time.Duration

	// Breaker enables a circuit breaker per target.
	Breaker bool

	// Output is "table", "json" or "yaml".
	Output string

	Logging Logging
}

// DefaultHost returns the configuration used without a file.
func DefaultHost() Host {
	return Host{
		Protocol: wire.Version20,
		Timeout:  time.Second,
		Output:   "table",
		Logging:  Logging{Level: slog.LevelWarn, Format: "text"},
	}
}

// Target is the sstarget configuration. Exactly one of Listen and Serial
// is used; Serial wins when both are set.
type Target struct {
	Listen   string
	Serial   string
	BaudRate int

	Protocol    wire.Version
	Ack         bool
	ReadTimeout time.Duration
	Resync      bool

	// Metrics is the listen address of the /metrics endpoint.
	// Empty disables it.
	Metrics string

	Logging Logging
}

// DefaultTarget returns the configuration used without a file.
func DefaultTarget() Target {
	return Target{
		Listen:      "127.0.0.1:4000",
		Protocol:    wire.Version20,
		ReadTimeout: 500 * time.Millisecond,
		Logging:     Logging{Level: slog.LevelInfo, Format: "text"},
	}
}

type fileLogging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type fileHost struct {
	Targets  []string    `toml:"targets"`
	Protocol string      `toml:"protocol"`
	Ack      bool        `toml:"ack"`
	Timeout  string      `toml:"timeout"`
	Breaker  bool        `toml:"breaker"`
	Output   string      `toml:"output"`
	Log      fileLogging `toml:"log"`
}

type fileTarget struct {
	Listen      string      `toml:"listen"`
	Serial      string      `toml:"serial"`
	BaudRate    int         `toml:"baud_rate"`
	Protocol    string      `toml:"protocol"`
	Ack         bool        `toml:"ack"`
	ReadTimeout string      `toml:"read_timeout"`
	Resync      bool        `toml:"resync"`
	Metrics     string      `toml:"metrics"`
	Log         fileLogging `toml:"log"`
}

// LoadHost reads an ssctl configuration file over DefaultHost.
func LoadHost(path string) (Host, error) {
	cfg := DefaultHost()

	var raw fileHost
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Host{}, fmt.Errorf("load host config: %w", err)
	}

	if meta.IsDefined("targets") {
		cfg.Targets = normalizeList(raw.Targets)
	}

	if meta.IsDefined("protocol") {
		if cfg.Protocol, err = ParseProtocol(raw.Protocol); err != nil {
			return Host{}, err
		}
	}

	if meta.IsDefined("ack") {
		cfg.Ack = raw.Ack
	}

	if meta.IsDefined("timeout") {
		if cfg.Timeout, err = parseDuration("timeout", raw.Timeout); err != nil {
			return Host{}, err
		}
	}

	if meta.IsDefined("breaker") {
		cfg.Breaker = raw.Breaker
	}

	if meta.IsDefined("output") {
		cfg.Output = strings.TrimSpace(raw.Output)
	}

	if cfg.Logging, err = mergeLogging(cfg.Logging, meta, raw.Log); err != nil {
		return Host{}, err
	}

	return cfg, nil
}

// LoadTarget reads an sstarget configuration file over DefaultTarget.
func LoadTarget(path string) (Target, error) {
	cfg := DefaultTarget()

	var raw fileTarget
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Target{}, fmt.Errorf("load target config: %w", err)
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}

	if meta.IsDefined("serial") {
		cfg.Serial = strings.TrimSpace(raw.Serial)
	}

	if meta.IsDefined("baud_rate") {
		cfg.BaudRate = raw.BaudRate
	}

	if meta.IsDefined("protocol") {
		if cfg.Protocol, err = ParseProtocol(raw.Protocol); err != nil {
			return Target{}, err
		}
	}

	if meta.IsDefined("ack") {
		cfg.Ack = raw.Ack
	}

	if meta.IsDefined("read_timeout") {
		if cfg.ReadTimeout, err = parseDuration("read_timeout", raw.ReadTimeout); err != nil {
			return Target{}, err
		}
	}

	if meta.IsDefined("resync") {
		cfg.Resync = raw.Resync
	}

	if meta.IsDefined("metrics") {
		cfg.Metrics = strings.TrimSpace(raw.Metrics)
	}

	if cfg.Logging, err = mergeLogging(cfg.Logging, meta, raw.Log); err != nil {
		return Target{}, err
	}

	return cfg, nil
}

func mergeLogging(cfg Logging, meta toml.MetaData, raw fileLogging) (Logging, error) {
	if meta.IsDefined("log", "level") {
		if err := cfg.Level.UnmarshalText([]byte(strings.TrimSpace(raw.Level))); err != nil {
			return Logging{}, fmt.Errorf("parse log.level: %w", err)
		}
	}

	if meta.IsDefined("log", "format") {
		format := strings.TrimSpace(raw.Format)
		if format != "text" && format != "json" {
			return Logging{}, fmt.Errorf("parse log.format: unknown format %q", format)
		}
		cfg.Format = format
	}

	return cfg, nil
}

// ParseProtocol parses a protocol revision as written in files and flags.
func ParseProtocol(s string) (wire.Version, error) {
	v, ok := wire.ParseVersion(strings.TrimSpace(s))
	if !ok {
		return 0, fmt.Errorf("parse protocol: unknown revision %q (want 1.0, 1.1 or 2.0)", s)
	}
	return v, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		v := strings.TrimSpace(s)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
