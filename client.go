package simpleserial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coastalwhite/simpleserial/transport"
	"github.com/coastalwhite/simpleserial/wire"
	"github.com/sony/gobreaker/v2"
)

var (
	// ErrClientClosed is returned by requests on a closed client.
	ErrClientClosed = errors.New("simpleserial: client closed")

	// ErrNotSupported is returned for commands the configured protocol
	// revision does not have.
	ErrNotSupported = errors.New("simpleserial: not supported by this protocol revision")

	// ErrVersionMismatch is returned by health checks when a target reports
	// another protocol revision than the configured one.
	ErrVersionMismatch = errors.New("simpleserial: protocol version mismatch")
)

// Config holds configuration for the client link pools.
type Config struct {
	// Protocol is the revision spoken by every target. The zero value is 1.0.
	Protocol wire.Version

	// Ack expects a 'z' acknowledgment after every text request.
	// Forced on for 1.1.
	Ack bool

	// Timeout bounds the wait for every byte of a response.
	// Default: 1s
	Timeout time.Duration

	// MaxSize is the maximum number of links per target.
	// Default: 1 (serial ports cannot be shared)
	MaxSize int32

	// MaxConnLifetime is the maximum duration a link can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a link can be idle before being closed.
	// Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle links are probed with a version
	// request. Zero disables health checks. Ignored for 1.0, which never answers.
	HealthCheckInterval time.Duration

	// Open creates a link to an endpoint.
	// If nil, transport.Open is used.
	Open func(ctx context.Context, endpoint string) (transport.Link, error)

	// Pool is the pool factory function.
	// If nil, uses the channel-based pool. Alternative: NewPuddlePool.
	Pool PoolFactory

	// SelectTarget picks which target handles a request key.
	// If nil, uses DefaultSelectTarget.
	SelectTarget SelectTargetFunc

	// NewCircuitBreaker creates a circuit breaker for a target.
	// Called once per endpoint when its pool is created.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(endpoint string) *gobreaker.CircuitBreaker[*Result]

	// Logger receives link and health-check events.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client sends requests to one or more SimpleSerial targets.
// It is safe for concurrent use; each link carries one exchange at a time.
type Client struct {
	stats clientStatsCollector

	targets      Targets
	selectTarget SelectTargetFunc
	cfg          Config
	connCfg      ConnConfig
	logger       *slog.Logger

	mu     sync.RWMutex
	pools  map[string]*targetPool
	closed bool

	stopHealthCheck chan struct{}
	closeOnce       sync.Once
}

// NewClient creates a client for the given targets.
// For a single target, use: NewClient(NewStaticTargets("tcp://host:port"), config)
func NewClient(targets Targets, config Config) (*Client, error) {
	if len(targets.List()) == 0 {
		return nil, ErrNoTargets
	}

	if config.SelectTarget == nil {
		config.SelectTarget = DefaultSelectTarget
	}
	if config.Open == nil {
		config.Open = transport.Open
	}
	if config.Pool == nil {
		config.Pool = NewChannelPool
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 1
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	client := &Client{
		targets:      targets,
		selectTarget: config.SelectTarget,
		cfg:          config,
		connCfg: ConnConfig{
			Protocol: config.Protocol,
			Ack:      config.Ack,
			Timeout:  config.Timeout,
		}.withDefaults(),
		logger:          config.Logger,
		pools:           make(map[string]*targetPool),
		stopHealthCheck: make(chan struct{}),
	}

	if config.HealthCheckInterval > 0 && config.Protocol != wire.Version10 {
		go client.healthCheckLoop()
	}

	return client, nil
}

// Close stops health checks and closes every link in every pool.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.stopHealthCheck)

		c.mu.Lock()
		defer c.mu.Unlock()

		c.closed = true
		for _, tp := range c.pools {
			tp.pool.Close()
		}
	})
}

// Do sends req to the target selected by req.Key and reads the response.
//
// A target answering with a non-OK status yields both the Result and a
// *wire.StatusError; the link stays in the pool. Any other error closes
// the link.
func (c *Client) Do(ctx context.Context, req Request) (*Result, error) {
	c.stats.recordRequest()

	if len(req.Data) > wire.MaxPayload {
		c.stats.recordError()
		return nil, &wire.ProtocolError{Cmd: req.Cmd, Err: wire.ErrPayloadTooLarge}
	}

	tp, err := c.poolForKey(req.Key)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	res, err := tp.Execute(ctx, req)

	var serr *wire.StatusError
	switch {
	case err == nil:
		c.stats.recordCompleted()
	case errors.As(err, &serr):
		c.stats.recordStatusError()
	default:
		c.stats.recordError()
	}
	return res, err
}

// Version asks the target for its protocol revision.
//
// 2.0 targets answer with an 'r' frame and 1.1 targets with the status of
// the acknowledgment. 1.0 targets never answer: ErrNotSupported.
func (c *Client) Version(ctx context.Context, key string) (wire.Version, error) {
	if c.connCfg.Protocol == wire.Version10 {
		return 0, ErrNotSupported
	}
	res, err := c.Do(ctx, Request{Key: key, Cmd: wire.CmdVersion})
	return parseVersion(c.connCfg.Protocol, res, err)
}

// ListCommands returns the command identifiers registered on the target,
// in registration order. 2.0 only.
func (c *Client) ListCommands(ctx context.Context, key string) ([]byte, error) {
	if !c.connCfg.Protocol.Binary() {
		return nil, ErrNotSupported
	}
	res, err := c.Do(ctx, Request{Key: key, Cmd: wire.CmdListCommands})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Ping sends a version request to every target and returns the last error.
// With 1.0, only the write is checked.
func (c *Client) Ping(ctx context.Context) error {
	var lastErr error
	for _, endpoint := range c.targets.List() {
		tp, err := c.getOrCreatePool(endpoint)
		if err != nil {
			lastErr = err
			continue
		}

		res, err := tp.Execute(ctx, Request{Cmd: wire.CmdVersion})
		if c.connCfg.Protocol != wire.Version10 {
			_, err = parseVersion(c.connCfg.Protocol, res, err)
		}
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", endpoint, err)
		}
	}
	return lastErr
}

func parseVersion(protocol wire.Version, res *Result, err error) (wire.Version, error) {
	if protocol.Binary() {
		if err != nil {
			return 0, err
		}
		if len(res.Data) != 1 {
			return 0, &wire.ProtocolError{Cmd: wire.CmdVersion, Err: fmt.Errorf("simpleserial: version reply of %d bytes", len(res.Data))}
		}
		return wire.Version(res.Data[0]), nil
	}

	// The text revisions report the version as the acknowledgment status.
	var serr *wire.StatusError
	if errors.As(err, &serr) {
		return wire.Version(serr.Status), nil
	}
	if err != nil {
		return 0, err
	}
	return wire.Version(res.Status), nil
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// AllPoolStats returns stats for every target pool created so far.
func (c *Client) AllPoolStats() []TargetPoolStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]TargetPoolStats, 0, len(c.pools))
	for _, tp := range c.pools {
		stats = append(stats, tp.Stats())
	}
	return stats
}

func (c *Client) poolForKey(key string) (*targetPool, error) {
	endpoint, err := c.selectTarget(key, c.targets.List())
	if err != nil {
		return nil, err
	}
	return c.getOrCreatePool(endpoint)
}

// getOrCreatePool gets or lazily creates the pool for an endpoint.
func (c *Client) getOrCreatePool(endpoint string) (*targetPool, error) {
	c.mu.RLock()
	tp, exists := c.pools[endpoint]
	c.mu.RUnlock()
	if exists {
		return tp, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if tp, exists := c.pools[endpoint]; exists {
		return tp, nil
	}
	if c.closed {
		return nil, ErrClientClosed
	}

	constructor := func(ctx context.Context) (*Conn, error) {
		link, err := c.cfg.Open(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		return NewConn(link, c.connCfg), nil
	}

	pool, err := c.cfg.Pool(constructor, c.cfg.MaxSize)
	if err != nil {
		return nil, err
	}

	tp = &targetPool{
		endpoint: endpoint,
		pool:     pool,
		stats:    &c.stats,
		logger:   c.logger,
	}
	if c.cfg.NewCircuitBreaker != nil {
		tp.circuitBreaker = c.cfg.NewCircuitBreaker(endpoint)
	}
	c.pools[endpoint] = tp
	return tp, nil
}

func (c *Client) healthCheckLoop() {
	ticker := time.NewTicker(c.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHealthCheck:
			return
		case <-ticker.C:
			c.checkAllPools()
		}
	}
}

func (c *Client) checkAllPools() {
	c.mu.RLock()
	pools := make([]*targetPool, 0, len(c.pools))
	for _, tp := range c.pools {
		pools = append(pools, tp)
	}
	c.mu.RUnlock()

	for _, tp := range pools {
		c.checkPoolConnections(tp)
	}
}

// checkPoolConnections destroys idle links that are stale or do not answer.
func (c *Client) checkPoolConnections(tp *targetPool) {
	now := time.Now()

	for _, res := range tp.pool.AcquireAllIdle() {
		if c.cfg.MaxConnLifetime > 0 && now.Sub(res.CreationTime()) > c.cfg.MaxConnLifetime {
			res.Destroy()
			continue
		}

		if c.cfg.MaxConnIdleTime > 0 && res.IdleDuration() > c.cfg.MaxConnIdleTime {
			res.Destroy()
			continue
		}

		err := c.healthCheck(res.Value())
		c.stats.recordHealthCheck(err == nil)
		if err != nil {
			c.logger.Warn("simpleserial: health check failed", "target", tp.endpoint, "error", err)
			res.Destroy()
			continue
		}

		res.ReleaseUnused()
	}
}

// healthCheck sends a version request and checks the reported revision.
func (c *Client) healthCheck(conn *Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.connCfg.Timeout)
	defer cancel()

	res, err := conn.Exchange(ctx, Request{Cmd: wire.CmdVersion})
	version, err := parseVersion(c.connCfg.Protocol, res, err)
	if err != nil {
		return err
	}
	if version != c.connCfg.Protocol {
		return fmt.Errorf("%w: target reports %s", ErrVersionMismatch, version)
	}
	return nil
}
