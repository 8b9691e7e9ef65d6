package simpleserial

import (
	"context"
	"testing"
	"time"

	"github.com/coastalwhite/simpleserial/internal/testutils"
	"github.com/coastalwhite/simpleserial/transport"
	"github.com/coastalwhite/simpleserial/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	frameResult = []byte{0x06, 0x72, 0x02, 0x11, 0x22, 0xF2, 0x00} // r [11 22]
	frameOK     = []byte{0x03, 0x65, 0x01, 0x02, 0x70, 0x00}       // e [00]
	frameCRC    = []byte{0x05, 0x65, 0x01, 0x02, 0x9A, 0x00}       // e [02]
)

func TestConnExchangeFrame(t *testing.T) {
	link := testutils.NewLinkMock(frameResult, frameOK)
	conn := NewConn(link, ConnConfig{Protocol: wire.Version20})

	res, err := conn.Exchange(context.Background(), Request{Cmd: 'A', Data: []byte{0x01, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, res.Status)
	assert.Equal(t, []byte{0x11, 0x22}, res.Data)

	assert.Equal(t, []byte{0x02, 0x41, 0x05, 0x02, 0x01, 0x02, 0xFE, 0x00}, link.Written())
	assert.Equal(t, time.Second, link.ReadTimeout())
}

func TestConnExchangeFrameStatus(t *testing.T) {
	link := testutils.NewLinkMock(frameCRC)
	conn := NewConn(link, ConnConfig{Protocol: wire.Version20})

	res, err := conn.Exchange(context.Background(), Request{Cmd: 'p'})
	require.ErrorIs(t, err, wire.ErrChecksumMismatch)

	var serr *wire.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, wire.StatusChecksumMismatch, serr.Status)
	assert.False(t, wire.ShouldCloseConnection(err))

	require.NotNil(t, res)
	assert.Equal(t, wire.StatusChecksumMismatch, res.Status)
}

func TestConnExchangeFrameMultipleResults(t *testing.T) {
	second, err := wire.AppendResponse(nil, wire.Response{Cmd: wire.RespResult, Data: []byte{0x00, 0x33}})
	require.NoError(t, err)

	link := testutils.NewLinkMock(frameResult, second, frameOK)
	conn := NewConn(link, ConnConfig{Protocol: wire.Version20})

	res, err := conn.Exchange(context.Background(), Request{Cmd: 'p'})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x11, 0x22, 0x00, 0x33}, res.Data)
}

func TestConnExchangeLine(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ConnConfig
		req      Request
		reply    string
		status   wire.Status
		data     []byte
		expected string
	}{
		{
			name:     "1.1 ack only",
			cfg:      ConnConfig{Protocol: wire.Version11},
			req:      Request{Cmd: 'k', Data: []byte{0x2B, 0x7E}},
			reply:    "z00\n",
			expected: "k2B7E\n",
		},
		{
			name:     "1.1 reply and ack",
			cfg:      ConnConfig{Protocol: wire.Version11},
			req:      Request{Cmd: 'p', Data: []byte{0x00}, ExpectReply: true},
			reply:    "r1122\nz00\n",
			data:     []byte{0x11, 0x22},
			expected: "p00\n",
		},
		{
			name:     "1.1 reply requested, ack only",
			cfg:      ConnConfig{Protocol: wire.Version11},
			req:      Request{Cmd: 'k', Data: []byte{0x01}, ExpectReply: true},
			reply:    "z00\n",
			expected: "k01\n",
		},
		{
			name:     "1.0 reply without ack",
			cfg:      ConnConfig{Protocol: wire.Version10},
			req:      Request{Cmd: 'p', ExpectReply: true},
			reply:    "rAB\n",
			data:     []byte{0xAB},
			expected: "p\n",
		},
		{
			name:     "1.0 nothing to read",
			cfg:      ConnConfig{Protocol: wire.Version10},
			req:      Request{Cmd: 'x'},
			expected: "x\n",
		},
		{
			name:     "1.0 with ack",
			cfg:      ConnConfig{Protocol: wire.Version10, Ack: true},
			req:      Request{Cmd: 'x'},
			reply:    "z00\n",
			expected: "x\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := testutils.NewLinkMock([]byte(tt.reply))
			conn := NewConn(link, tt.cfg)

			res, err := conn.Exchange(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.data, res.Data)
			assert.Equal(t, tt.expected, string(link.Written()))
		})
	}
}

func TestConnExchangeLineStatus(t *testing.T) {
	link := testutils.NewLinkMock([]byte("z12\n"))
	conn := NewConn(link, ConnConfig{Protocol: wire.Version11})

	res, err := conn.Exchange(context.Background(), Request{Cmd: 'k'})
	var serr *wire.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, wire.Status(0x12), serr.Status)
	assert.Equal(t, wire.Status(0x12), res.Status)
}

func TestConnExchangeLineStatusWithoutResult(t *testing.T) {
	link := testutils.NewLinkMock([]byte("z10\n"))
	conn := NewConn(link, ConnConfig{Protocol: wire.Version11})

	res, err := conn.Exchange(context.Background(), Request{Cmd: 'p', ExpectReply: true})
	var serr *wire.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, wire.Status(0x10), serr.Status)
	assert.False(t, wire.ShouldCloseConnection(err))

	require.NotNil(t, res)
	assert.Equal(t, wire.Status(0x10), res.Status)
	assert.Nil(t, res.Data)
}

func TestConnExchangeLineUnexpected(t *testing.T) {
	tests := []struct {
		name  string
		cfg   ConnConfig
		reply string
	}{
		{name: "ack without acks enabled", cfg: ConnConfig{Protocol: wire.Version10}, reply: "z00\n"},
		{name: "unknown line", cfg: ConnConfig{Protocol: wire.Version11}, reply: "k00\n"},
		{name: "second result", cfg: ConnConfig{Protocol: wire.Version11}, reply: "r00\nr00\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := NewConn(testutils.NewLinkMock([]byte(tt.reply)), tt.cfg)

			_, err := conn.Exchange(context.Background(), Request{Cmd: 'p', ExpectReply: true})
			var perr *wire.ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.True(t, wire.ShouldCloseConnection(err))
		})
	}
}

func TestConnExchangeTimeout(t *testing.T) {
	conn := NewConn(testutils.NewLinkMock(), ConnConfig{Protocol: wire.Version20})

	_, err := conn.Exchange(context.Background(), Request{Cmd: 'p'})
	require.ErrorIs(t, err, transport.ErrTimeout)

	var cerr *wire.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.True(t, wire.ShouldCloseConnection(err))
}

func TestConnExchangeContextDeadline(t *testing.T) {
	link := testutils.NewLinkMock(frameOK)
	conn := NewConn(link, ConnConfig{Protocol: wire.Version20, Timeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := conn.Exchange(ctx, Request{Cmd: 'p'})
	require.NoError(t, err)
	assert.LessOrEqual(t, link.ReadTimeout(), 200*time.Millisecond)
	assert.Positive(t, link.ReadTimeout())
}

func TestConnExchangeCancelled(t *testing.T) {
	link := testutils.NewLinkMock(frameOK)
	conn := NewConn(link, ConnConfig{Protocol: wire.Version20})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Exchange(ctx, Request{Cmd: 'p'})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, link.Written())
}

func TestConnClose(t *testing.T) {
	link := testutils.NewLinkMock(frameOK)
	conn := NewConn(link, ConnConfig{Protocol: wire.Version20})

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, link.Closed())

	_, err := conn.Exchange(context.Background(), Request{Cmd: 'p'})
	require.ErrorIs(t, err, ErrConnClosed)
}

func TestConnConfigDefaults(t *testing.T) {
	cfg := ConnConfig{Protocol: wire.Version11}.withDefaults()
	assert.True(t, cfg.Ack)
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	cfg = ConnConfig{Protocol: wire.Version20, Timeout: time.Millisecond}.withDefaults()
	assert.False(t, cfg.Ack)
	assert.Equal(t, time.Millisecond, cfg.Timeout)
}
