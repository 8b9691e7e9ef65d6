package simpleserial

import (
	"context"
	"log/slog"

	"github.com/coastalwhite/simpleserial/wire"
	"github.com/sony/gobreaker/v2"
)

// targetPool wraps a link pool and a circuit breaker with its endpoint.
type targetPool struct {
	endpoint       string
	pool           Pool
	circuitBreaker *gobreaker.CircuitBreaker[*Result] // nil if not configured
	stats          *clientStatsCollector
	logger         *slog.Logger
}

// TargetPoolStats contains stats for a single target pool.
type TargetPoolStats struct {
	Endpoint             string
	PoolStats            PoolStats
	CircuitBreakerState  gobreaker.State
	CircuitBreakerCounts gobreaker.Counts
}

func (tp *targetPool) Stats() TargetPoolStats {
	stats := TargetPoolStats{
		Endpoint:  tp.endpoint,
		PoolStats: tp.pool.Stats(),
	}
	if tp.circuitBreaker != nil {
		stats.CircuitBreakerState = tp.circuitBreaker.State()
		stats.CircuitBreakerCounts = tp.circuitBreaker.Counts()
	}
	return stats
}

// Execute runs one exchange on a pooled link, wrapped with the target's
// circuit breaker when one is configured.
func (tp *targetPool) Execute(ctx context.Context, req Request) (*Result, error) {
	if tp.circuitBreaker == nil {
		return tp.execDirect(ctx, req)
	}

	return tp.circuitBreaker.Execute(func() (*Result, error) {
		return tp.execDirect(ctx, req)
	})
}

// execDirect acquires a link, runs the exchange and hands the link back,
// destroying it when the error leaves the stream in an unknown state.
func (tp *targetPool) execDirect(ctx context.Context, req Request) (*Result, error) {
	resource, err := tp.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.Value().Exchange(ctx, req)
	if res != nil {
		res.Target = tp.endpoint
	}
	if err != nil {
		if wire.ShouldCloseConnection(err) {
			tp.stats.recordDestroyedLink()
			tp.logger.Warn("simpleserial: link destroyed", "target", tp.endpoint, "cmd", string(rune(req.Cmd)), "error", err)
			resource.Destroy()
		} else {
			resource.Release()
		}
		return res, err
	}

	resource.Release()
	return res, nil
}
