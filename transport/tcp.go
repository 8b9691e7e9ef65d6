package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// ConnLink is a Link over a net.Conn. It is how hosts talk to simulated
// targets and how a simulated target serves a host.
type ConnLink struct {
	conn    net.Conn
	timeout atomic.Int64 // nanoseconds, 0 = none
}

// NewConnLink wraps an established connection.
func NewConnLink(conn net.Conn) *ConnLink {
	return &ConnLink{conn: conn}
}

// DialTCP connects to a target listening on addr.
func DialTCP(ctx context.Context, addr string) (*ConnLink, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to dial %s: %w", addr, err)
	}
	return NewConnLink(conn), nil
}

// Read applies the read timeout as a deadline on every call.
//
// A deadline cannot be set once either side has closed; the read still
// runs so that a closed peer reports io.EOF.
func (l *ConnLink) Read(p []byte) (int, error) {
	var deadline time.Time
	if t := time.Duration(l.timeout.Load()); t > 0 {
		deadline = time.Now().Add(t)
	}
	_ = l.conn.SetReadDeadline(deadline)

	n, err := l.conn.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, ErrTimeout
	}
	return n, err
}

func (l *ConnLink) Write(p []byte) (int, error) {
	return l.conn.Write(p)
}

// SetReadTimeout implements Link.
func (l *ConnLink) SetReadTimeout(d time.Duration) error {
	if d < 0 {
		d = 0
	}
	l.timeout.Store(int64(d))
	return nil
}

func (l *ConnLink) Close() error {
	return l.conn.Close()
}

func (l *ConnLink) String() string {
	return "tcp://" + l.conn.RemoteAddr().String()
}
