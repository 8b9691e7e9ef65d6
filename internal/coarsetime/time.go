// Package coarsetime is a clock refreshed every 50ms. Link pools stamp
// every release with it, where the cost of time.Now adds up and 50ms of
// precision is plenty for idle and lifetime limits.
package coarsetime

import (
	"sync/atomic"
	"time"
)

// Resolution is the refresh period of the clock.
const Resolution = 50 * time.Millisecond

var nanos atomic.Int64

func init() {
	nanos.Store(time.Now().UnixNano())

	go func() {
		for t := range time.Tick(Resolution) {
			nanos.Store(t.UnixNano())
		}
	}()
}

// Now returns the current time, at most Resolution old.
func Now() time.Time {
	return time.Unix(0, nanos.Load())
}

// Since is time.Since on the coarse clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
