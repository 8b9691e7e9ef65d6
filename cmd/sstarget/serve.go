package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/coastalwhite/simpleserial/internal/config"
	"github.com/coastalwhite/simpleserial/target"
	"github.com/coastalwhite/simpleserial/transport"
)

// server runs one dispatcher per host connection, one connection at a
// time, over a shared registry.
type server struct {
	cfg    config.Target
	reg    *target.Registry
	stats  *dispatchStats
	logger *slog.Logger
}

func (s *server) dispatcherConfig() target.Config {
	return target.Config{
		Protocol:    s.cfg.Protocol,
		Ack:         s.cfg.Ack,
		ReadTimeout: s.cfg.ReadTimeout,
		Resync:      s.cfg.Resync,
		Logger:      s.logger,
	}
}

// serveLink serves link until the host goes away or ctx is done.
func (s *server) serveLink(ctx context.Context, link transport.Link) error {
	stream := transport.NewStream(link)
	d := target.NewDispatcher(s.reg, stream, stream, s.dispatcherConfig())

	s.stats.start(d)
	defer s.stats.finish(d)

	err := d.Serve(ctx)
	if errors.Is(err, io.EOF) || ctx.Err() != nil {
		return nil
	}
	return err
}

// serveTCP accepts hosts on ln until ctx is done.
func (s *server) serveTCP(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("listening", "addr", ln.Addr().String(), "protocol", s.cfg.Protocol.String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		remote := conn.RemoteAddr().String()
		s.logger.Info("host connected", "remote", remote)

		// A blocked read only returns once the connection is closed.
		closeConn := context.AfterFunc(ctx, func() { conn.Close() })
		err = s.serveLink(ctx, transport.NewConnLink(conn))
		closeConn()
		conn.Close()

		if err != nil {
			s.logger.Warn("host disconnected", "remote", remote, "error", err)
		} else {
			s.logger.Info("host disconnected", "remote", remote)
		}
	}
}

// serveSerial serves the configured serial port until ctx is done.
func (s *server) serveSerial(ctx context.Context) error {
	link, err := transport.OpenSerial(transport.SerialConfig{
		Path:     s.cfg.Serial,
		BaudRate: s.cfg.BaudRate,
	})
	if err != nil {
		return err
	}
	defer link.Close()

	stop := context.AfterFunc(ctx, func() { link.Close() })
	defer stop()

	s.logger.Info("serving", "port", link.String(), "protocol", s.cfg.Protocol.String())
	return s.serveLink(ctx, link)
}
