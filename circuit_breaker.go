package simpleserial

import (
	"time"

	"github.com/coastalwhite/simpleserial/wire"
	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a function that creates a circuit breaker
// per target. This is a helper for common use cases.
//
// A target that answers with a non-OK status is healthy: only errors that
// make the link unusable (I/O, timeouts, undecodable frames) count as
// failures.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) *gobreaker.CircuitBreaker[*Result] {
	return func(target string) *gobreaker.CircuitBreaker[*Result] {
		settings := gobreaker.Settings{
			Name:        target,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: isBreakerSuccess,
		}
		return gobreaker.NewCircuitBreaker[*Result](settings)
	}
}

func isBreakerSuccess(err error) bool {
	return err == nil || !wire.ShouldCloseConnection(err)
}
