// Package testutils holds in-memory links for tests.
package testutils

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/coastalwhite/simpleserial/target"
	"github.com/coastalwhite/simpleserial/transport"
)

// LinkMock is a transport.Link that replays canned target output and
// records what the host wrote. Once the canned bytes are exhausted, reads
// time out like a silent target.
type LinkMock struct {
	mu       sync.Mutex
	readBuf  *bytes.Buffer
	writeBuf bytes.Buffer
	timeout  time.Duration
	closed   bool
}

var _ transport.Link = (*LinkMock)(nil)

// NewLinkMock creates a link that will return the given bytes, in order.
func NewLinkMock(responses ...[]byte) *LinkMock {
	return &LinkMock{readBuf: bytes.NewBuffer(bytes.Join(responses, nil))}
}

func (m *LinkMock) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.ErrClosedPipe
	}
	if m.readBuf.Len() == 0 {
		return 0, transport.ErrTimeout
	}
	return m.readBuf.Read(p)
}

func (m *LinkMock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.ErrClosedPipe
	}
	return m.writeBuf.Write(p)
}

func (m *LinkMock) SetReadTimeout(d time.Duration) error {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
	return nil
}

func (m *LinkMock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Feed appends more target output.
func (m *LinkMock) Feed(p []byte) {
	m.mu.Lock()
	m.readBuf.Write(p)
	m.mu.Unlock()
}

// Written returns every byte the host wrote so far.
func (m *LinkMock) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bytes.Clone(m.writeBuf.Bytes())
}

// Closed reports whether Close was called.
func (m *LinkMock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ReadTimeout returns the last timeout set on the link.
func (m *LinkMock) ReadTimeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeout
}

// PipeTarget runs a dispatcher for reg on one end of an in-memory pipe and
// returns the other end. The dispatcher stops when the returned link is
// closed.
func PipeTarget(reg *target.Registry, cfg target.Config) transport.Link {
	host, device := net.Pipe()

	go func() {
		stream := transport.NewStream(transport.NewConnLink(device))
		defer stream.Close()

		d := target.NewDispatcher(reg, stream, stream, cfg)
		_ = d.Serve(context.Background())
	}()

	return transport.NewConnLink(host)
}
