package simpleserial

import (
	"context"
	"sync"
	"time"

	"github.com/coastalwhite/simpleserial/internal/coarsetime"
)

// NewChannelPool creates a channel-based pool. It is the default pool.
//
// Each resource owns one open link to the target. A maxSize of 0 means 1,
// which is the only valid size for a serial port: a second Acquire waits
// until the exchange in flight releases the port. Larger sizes only make
// sense for simulated targets that accept several TCP hosts.
func NewChannelPool(constructor func(ctx context.Context) (*Conn, error), maxSize int32) (Pool, error) {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &channelPool{
		constructor: constructor,
		maxSize:     maxSize,
		idle:        make(chan *channelResource, maxSize),
	}, nil
}

// channelResource is an idle or checked out link. Bytes left unread by an
// abandoned exchange stay buffered in the Conn and are discarded before
// the next request.
type channelResource struct {
	conn     *Conn
	pool     *channelPool
	created  time.Time
	lastUsed time.Time
}

func (r *channelResource) Value() *Conn {
	return r.conn
}

func (r *channelResource) Release() {
	r.lastUsed = coarsetime.Now()
	r.pool.put(r)
}

// ReleaseUnused returns the resource without marking it used, for health checks.
func (r *channelResource) ReleaseUnused() {
	r.pool.put(r)
}

// Destroy closes the link. The next Acquire reopens it, which for a serial
// port is also how a target that lost sync gets a clean input buffer.
func (r *channelResource) Destroy() {
	_ = r.conn.Close()
	r.pool.remove()
}

func (r *channelResource) CreationTime() time.Time {
	return r.created
}

func (r *channelResource) IdleDuration() time.Duration {
	return coarsetime.Since(r.lastUsed)
}

type channelPool struct {
	stats poolStatsCollector // first for 64-bit atomic alignment

	constructor func(ctx context.Context) (*Conn, error)
	maxSize     int32

	mu     sync.Mutex
	idle   chan *channelResource
	size   int32
	closed bool
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	select {
	case res, ok := <-p.idle:
		if !ok {
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}
		p.stats.recordAcquireFromIdle()
		return res, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.stats.recordAcquireError()
		return nil, ErrPoolClosed
	}

	if p.size < p.maxSize {
		p.size++
		p.mu.Unlock()

		conn, err := p.constructor(ctx)
		if err != nil {
			p.mu.Lock()
			p.size--
			p.mu.Unlock()
			p.stats.recordAcquireError()
			return nil, err
		}

		p.stats.recordCreate()
		p.stats.recordActivate()

		now := coarsetime.Now()
		return &channelResource{conn: conn, pool: p, created: now, lastUsed: now}, nil
	}
	p.mu.Unlock()

	// Full: wait for a release
	start := time.Now()
	select {
	case res, ok := <-p.idle:
		if !ok {
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}
		p.stats.recordAcquireWait(time.Since(start))
		p.stats.recordAcquireFromIdle()
		return res, nil
	case <-ctx.Done():
		p.stats.recordAcquireError()
		return nil, ctx.Err()
	}
}

func (p *channelPool) put(res *channelResource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = res.conn.Close()
		p.size--
		p.stats.recordDestroy()
		return
	}

	select {
	case p.idle <- res:
		p.stats.recordRelease()
	default:
		_ = res.conn.Close()
		p.size--
		p.stats.recordDestroy()
	}
}

func (p *channelPool) remove() {
	p.mu.Lock()
	p.size--
	p.mu.Unlock()
	p.stats.recordDestroy()
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var idle []Resource
	for {
		select {
		case res, ok := <-p.idle:
			if !ok {
				return idle
			}
			p.stats.recordAcquireFromIdle()
			idle = append(idle, res)
		default:
			return idle
		}
	}
}

// Close closes idle connections. Checked out connections are closed when
// they come back.
func (p *channelPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	for res := range p.idle {
		_ = res.conn.Close()
		p.mu.Lock()
		p.size--
		p.mu.Unlock()
		p.stats.recordDestroyIdle()
	}
}

func (p *channelPool) Stats() PoolStats {
	return p.stats.snapshot()
}
