package simpleserial

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about a link pool.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalConns, IdleConns, ActiveConns
//   - Counters: AcquireCount, AcquireWaitCount, CreatedConns, DestroyedConns, AcquireErrors
//   - Histogram: AcquireWaitDuration (use AcquireWaitCount and AcquireWaitTimeNs to calculate)
type PoolStats struct {
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total links opened
	DestroyedConns    uint64 // Total links closed
	AcquireErrors     uint64 // Failed acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalConns  int32 // Links in the pool (active + idle)
	IdleConns   int32 // Idle links available
	ActiveConns int32 // Links currently in an exchange
	_           int32 // Padding to align to 64 bytes
}

// ClientStats contains statistics about client exchanges.
//
// Struct is sized to a single cache line (64 bytes).
type ClientStats struct {
	Requests       uint64 // Exchanges started
	Completed      uint64 // Exchanges answered with StatusOK
	StatusErrors   uint64 // Exchanges answered with another status
	Errors         uint64 // Exchanges that failed: pool, I/O, framing, open circuit
	DestroyedLinks uint64 // Links closed after an error
	HealthChecks   uint64 // Idle links probed
	HealthFailures uint64 // Probes that failed
	_              uint64 // Padding to align to 64 bytes
}

type poolStatsCollector struct {
	stats PoolStats
}

func (c *poolStatsCollector) recordAcquire() {
	atomic.AddUint64(&c.stats.AcquireCount, 1)
}

func (c *poolStatsCollector) recordAcquireWait(d time.Duration) {
	atomic.AddUint64(&c.stats.AcquireWaitCount, 1)
	atomic.AddUint64(&c.stats.AcquireWaitTimeNs, uint64(d.Nanoseconds()))
}

func (c *poolStatsCollector) recordCreate() {
	atomic.AddUint64(&c.stats.CreatedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, 1)
}

// recordDestroy accounts for a checked out link being closed.
func (c *poolStatsCollector) recordDestroy() {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, -1)
}

func (c *poolStatsCollector) recordDestroyIdle() {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
	atomic.AddInt32(&c.stats.IdleConns, -1)
}

func (c *poolStatsCollector) recordAcquireError() {
	atomic.AddUint64(&c.stats.AcquireErrors, 1)
}

func (c *poolStatsCollector) recordAcquireFromIdle() {
	atomic.AddInt32(&c.stats.IdleConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *poolStatsCollector) recordActivate() {
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *poolStatsCollector) recordRelease() {
	atomic.AddInt32(&c.stats.IdleConns, 1)
	atomic.AddInt32(&c.stats.ActiveConns, -1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		TotalConns:        atomic.LoadInt32(&c.stats.TotalConns),
		IdleConns:         atomic.LoadInt32(&c.stats.IdleConns),
		ActiveConns:       atomic.LoadInt32(&c.stats.ActiveConns),
		AcquireCount:      atomic.LoadUint64(&c.stats.AcquireCount),
		AcquireWaitCount:  atomic.LoadUint64(&c.stats.AcquireWaitCount),
		CreatedConns:      atomic.LoadUint64(&c.stats.CreatedConns),
		DestroyedConns:    atomic.LoadUint64(&c.stats.DestroyedConns),
		AcquireErrors:     atomic.LoadUint64(&c.stats.AcquireErrors),
		AcquireWaitTimeNs: atomic.LoadUint64(&c.stats.AcquireWaitTimeNs),
	}
}

type clientStatsCollector struct {
	stats ClientStats
}

func (c *clientStatsCollector) recordRequest() {
	atomic.AddUint64(&c.stats.Requests, 1)
}

func (c *clientStatsCollector) recordCompleted() {
	atomic.AddUint64(&c.stats.Completed, 1)
}

func (c *clientStatsCollector) recordStatusError() {
	atomic.AddUint64(&c.stats.StatusErrors, 1)
}

func (c *clientStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *clientStatsCollector) recordDestroyedLink() {
	atomic.AddUint64(&c.stats.DestroyedLinks, 1)
}

func (c *clientStatsCollector) recordHealthCheck(ok bool) {
	atomic.AddUint64(&c.stats.HealthChecks, 1)
	if !ok {
		atomic.AddUint64(&c.stats.HealthFailures, 1)
	}
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Requests:       atomic.LoadUint64(&c.stats.Requests),
		Completed:      atomic.LoadUint64(&c.stats.Completed),
		StatusErrors:   atomic.LoadUint64(&c.stats.StatusErrors),
		Errors:         atomic.LoadUint64(&c.stats.Errors),
		DestroyedLinks: atomic.LoadUint64(&c.stats.DestroyedLinks),
		HealthChecks:   atomic.LoadUint64(&c.stats.HealthChecks),
		HealthFailures: atomic.LoadUint64(&c.stats.HealthFailures),
	}
}
