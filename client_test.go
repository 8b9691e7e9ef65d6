package simpleserial

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coastalwhite/simpleserial/internal/testutils"
	"github.com/coastalwhite/simpleserial/target"
	"github.com/coastalwhite/simpleserial/transport"
	"github.com/coastalwhite/simpleserial/wire"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTargetRegistry returns the registry of a small firmware: the built-ins,
// 'A' answering [11 22] and 'f' failing with a handler status.
func newTargetRegistry(t *testing.T, version wire.Version) *target.Registry {
	t.Helper()

	reg := target.NewRegistry()
	require.NoError(t, target.RegisterBuiltins(reg, version))

	if version.Binary() {
		require.NoError(t, reg.Register('A', 2, target.V2(func(_, _ byte, data []byte) (byte, []byte) {
			return 0x00, []byte{0x11, 0x22}
		})))
		require.NoError(t, reg.Register('f', 0, target.V2(func(_, _ byte, _ []byte) (byte, []byte) {
			return 0x10, nil
		})))
		return reg
	}

	require.NoError(t, reg.Register('A', 2, target.V1Reply(func(data []byte) (byte, []byte) {
		return 0x00, []byte{data[1], data[0]}
	})))
	require.NoError(t, reg.Register('f', 0, target.V1(func([]byte) byte {
		return 0x10
	})))
	return reg
}

// pipeOpener opens simulated targets speaking version.
type pipeOpener struct {
	t       *testing.T
	version wire.Version
	opened  atomic.Int32
}

func (o *pipeOpener) open(ctx context.Context, endpoint string) (transport.Link, error) {
	o.opened.Add(1)
	reg := newTargetRegistry(o.t, o.version)
	// net.Pipe is unbuffered: leftovers of a rejected frame must be
	// drained by the target, or both ends end up blocked writing.
	return testutils.PipeTarget(reg, target.Config{Protocol: o.version, Resync: true}), nil
}

func newPipeClient(t *testing.T, version wire.Version, targets ...string) (*Client, *pipeOpener) {
	t.Helper()

	if len(targets) == 0 {
		targets = []string{"tcp://target-0"}
	}
	opener := &pipeOpener{t: t, version: version}

	client, err := NewClient(NewStaticTargets(targets...), Config{
		Protocol: version,
		Timeout:  time.Second,
		Open:     opener.open,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client, opener
}

func TestNewClientNoTargets(t *testing.T) {
	_, err := NewClient(NewStaticTargets(), Config{})
	require.ErrorIs(t, err, ErrNoTargets)
}

func TestClientDoBinary(t *testing.T) {
	client, opener := newPipeClient(t, wire.Version20)
	ctx := context.Background()

	res, err := client.Do(ctx, Request{Cmd: 'A', Data: []byte{0x01, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, res.Status)
	assert.Equal(t, []byte{0x11, 0x22}, res.Data)
	assert.Equal(t, "tcp://target-0", res.Target)

	// Second request reuses the link.
	_, err = client.Do(ctx, Request{Cmd: 'A', Data: []byte{0x03, 0x04}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), opener.opened.Load())

	stats := client.Stats()
	assert.Equal(t, uint64(2), stats.Requests)
	assert.Equal(t, uint64(2), stats.Completed)
}

func TestClientDoHandlerStatus(t *testing.T) {
	client, opener := newPipeClient(t, wire.Version20)
	ctx := context.Background()

	res, err := client.Do(ctx, Request{Cmd: 'f'})
	var serr *wire.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, wire.Status(0x10), serr.Status)
	assert.Equal(t, wire.Status(0x10), res.Status)

	_, err = client.Do(ctx, Request{Cmd: '?'})
	require.ErrorIs(t, err, wire.ErrUnknownCommand)

	// The link survives both.
	_, err = client.Do(ctx, Request{Cmd: 'A', Data: []byte{0x01, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), opener.opened.Load())

	stats := client.Stats()
	assert.Equal(t, uint64(2), stats.StatusErrors)
	assert.Equal(t, uint64(0), stats.DestroyedLinks)
}

func TestClientDoText(t *testing.T) {
	client, _ := newPipeClient(t, wire.Version11)
	ctx := context.Background()

	res, err := client.Do(ctx, Request{Cmd: 'A', Data: []byte{0x01, 0x02}, ExpectReply: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01}, res.Data)

	_, err = client.Do(ctx, Request{Cmd: 'f'})
	var serr *wire.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, wire.Status(0x10), serr.Status)
}

func TestClientDoPayloadTooLarge(t *testing.T) {
	client, opener := newPipeClient(t, wire.Version20)

	_, err := client.Do(context.Background(), Request{Cmd: 'A', Data: make([]byte, wire.MaxPayload+1)})
	require.ErrorIs(t, err, wire.ErrPayloadTooLarge)
	assert.Zero(t, opener.opened.Load())
	assert.Empty(t, client.AllPoolStats())
}

func TestClientVersion(t *testing.T) {
	tests := []struct {
		version wire.Version
	}{
		{wire.Version11},
		{wire.Version20},
	}

	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			client, _ := newPipeClient(t, tt.version)

			version, err := client.Version(context.Background(), "")
			require.NoError(t, err)
			assert.Equal(t, tt.version, version)
		})
	}
}

func TestClientVersionUnsupported(t *testing.T) {
	client, _ := newPipeClient(t, wire.Version10)

	_, err := client.Version(context.Background(), "")
	require.ErrorIs(t, err, ErrNotSupported)

	_, err = client.ListCommands(context.Background(), "")
	require.ErrorIs(t, err, ErrNotSupported)
}

func TestClientListCommands(t *testing.T) {
	client, _ := newPipeClient(t, wire.Version20)

	ids, err := client.ListCommands(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []byte{'v', 'w', 'A', 'f'}, ids)
}

func TestClientPing(t *testing.T) {
	client, opener := newPipeClient(t, wire.Version20, "tcp://a", "tcp://b", "tcp://c")

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, int32(3), opener.opened.Load())
	assert.Len(t, client.AllPoolStats(), 3)
}

func TestClientKeysStickToTargets(t *testing.T) {
	client, _ := newPipeClient(t, wire.Version20, "tcp://a", "tcp://b", "tcp://c")
	ctx := context.Background()

	for _, key := range []string{"trace-1", "trace-2", "trace-3", "trace-4"} {
		first, err := client.Do(ctx, Request{Key: key, Cmd: 'A', Data: []byte{0, 0}})
		require.NoError(t, err)
		second, err := client.Do(ctx, Request{Key: key, Cmd: 'A', Data: []byte{0, 0}})
		require.NoError(t, err)
		assert.Equal(t, first.Target, second.Target)
	}
}

func TestClientDestroysLinkOnTimeout(t *testing.T) {
	var links []*testutils.LinkMock
	client, err := NewClient(NewStaticTargets("tcp://silent"), Config{
		Protocol: wire.Version20,
		Timeout:  10 * time.Millisecond,
		Open: func(ctx context.Context, endpoint string) (transport.Link, error) {
			link := testutils.NewLinkMock()
			links = append(links, link)
			return link, nil
		},
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(context.Background(), Request{Cmd: 'p'})
	require.ErrorIs(t, err, transport.ErrTimeout)

	require.Len(t, links, 1)
	assert.True(t, links[0].Closed())

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Errors)
	assert.Equal(t, uint64(1), stats.DestroyedLinks)
}

func TestClientOpenError(t *testing.T) {
	errOpen := errors.New("no such device")
	client, err := NewClient(NewStaticTargets("serial:///dev/missing"), Config{
		Open: func(ctx context.Context, endpoint string) (transport.Link, error) {
			return nil, errOpen
		},
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(context.Background(), Request{Cmd: 'p'})
	require.ErrorIs(t, err, errOpen)
	assert.Equal(t, uint64(1), client.Stats().Errors)
}

func TestClientCircuitBreaker(t *testing.T) {
	var opened atomic.Int32
	client, err := NewClient(NewStaticTargets("tcp://silent"), Config{
		Protocol: wire.Version20,
		Timeout:  10 * time.Millisecond,
		Open: func(ctx context.Context, endpoint string) (transport.Link, error) {
			opened.Add(1)
			return testutils.NewLinkMock(), nil
		},
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	for range 3 {
		_, err := client.Do(ctx, Request{Cmd: 'p'})
		require.ErrorIs(t, err, transport.ErrTimeout)
	}

	_, err = client.Do(ctx, Request{Cmd: 'p'})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), opened.Load())

	stats := client.AllPoolStats()
	require.Len(t, stats, 1)
	assert.Equal(t, gobreaker.StateOpen, stats[0].CircuitBreakerState)
}

func TestClientCircuitBreakerIgnoresStatus(t *testing.T) {
	client, err := NewClient(NewStaticTargets("tcp://target"), Config{
		Protocol:          wire.Version20,
		Open:              (&pipeOpener{t: t, version: wire.Version20}).open,
		NewCircuitBreaker: NewCircuitBreakerConfig(1, time.Minute, time.Minute),
	})
	require.NoError(t, err)
	defer client.Close()

	for range 5 {
		_, err := client.Do(context.Background(), Request{Cmd: 'f'})
		var serr *wire.StatusError
		require.ErrorAs(t, err, &serr)
	}

	stats := client.AllPoolStats()
	require.Len(t, stats, 1)
	assert.Equal(t, gobreaker.StateClosed, stats[0].CircuitBreakerState)
	assert.Equal(t, uint32(5), stats[0].CircuitBreakerCounts.TotalSuccesses)
}

func TestClientHealthCheck(t *testing.T) {
	client, opener := newPipeClient(t, wire.Version20)

	_, err := client.Do(context.Background(), Request{Cmd: 'A', Data: []byte{0, 0}})
	require.NoError(t, err)

	client.checkAllPools()

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.HealthChecks)
	assert.Equal(t, uint64(0), stats.HealthFailures)

	_, err = client.Do(context.Background(), Request{Cmd: 'A', Data: []byte{0, 0}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), opener.opened.Load())
}

func TestClientHealthCheckDestroysSilentLink(t *testing.T) {
	var link *testutils.LinkMock
	client, err := NewClient(NewStaticTargets("tcp://target"), Config{
		Protocol: wire.Version20,
		Timeout:  10 * time.Millisecond,
		Open: func(ctx context.Context, endpoint string) (transport.Link, error) {
			link = testutils.NewLinkMock(frameOK)
			return link, nil
		},
	})
	require.NoError(t, err)
	defer client.Close()

	// 'x' consumes the only canned answer.
	_, err = client.Do(context.Background(), Request{Cmd: 'x'})
	require.NoError(t, err)

	client.checkAllPools()

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.HealthFailures)
	assert.True(t, link.Closed())
	assert.Equal(t, int32(0), client.AllPoolStats()[0].PoolStats.TotalConns)
}

func TestClientHealthCheckMaxLifetime(t *testing.T) {
	client, err := NewClient(NewStaticTargets("tcp://target"), Config{
		Protocol:        wire.Version20,
		MaxConnLifetime: time.Nanosecond,
		Open:            (&pipeOpener{t: t, version: wire.Version20}).open,
	})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(context.Background(), Request{Cmd: 'A', Data: []byte{0, 0}})
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	client.checkAllPools()

	assert.Zero(t, client.Stats().HealthChecks)
	assert.Equal(t, uint64(1), client.AllPoolStats()[0].PoolStats.DestroyedConns)
}

func TestClientClose(t *testing.T) {
	client, _ := newPipeClient(t, wire.Version20, "tcp://a", "tcp://b")

	_, err := client.Do(context.Background(), Request{Key: "k", Cmd: 'A', Data: []byte{0, 0}})
	require.NoError(t, err)

	client.Close()
	client.Close()

	for _, key := range []string{"k", "other", "third", "fourth"} {
		_, err = client.Do(context.Background(), Request{Key: key, Cmd: 'A', Data: []byte{0, 0}})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrPoolClosed) || errors.Is(err, ErrClientClosed), err)
	}
}
