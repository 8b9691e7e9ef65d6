package main

import (
	"net/http"
	"sync"

	"github.com/coastalwhite/simpleserial/target"
	"github.com/coastalwhite/simpleserial/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// dispatchStats tracks the dispatchers of the process: totals of the
// finished ones plus the one currently serving.
type dispatchStats struct {
	mu       sync.Mutex
	finished target.Stats
	live     *target.Dispatcher
	sessions uint64
}

func (s *dispatchStats) start(d *target.Dispatcher) {
	s.mu.Lock()
	s.live = d
	s.sessions++
	s.mu.Unlock()
}

func (s *dispatchStats) finish(d *target.Dispatcher) {
	s.mu.Lock()
	s.finished = s.finished.Add(d.Stats())
	if s.live == d {
		s.live = nil
	}
	s.mu.Unlock()
}

func (s *dispatchStats) snapshot() (target.Stats, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.finished
	if s.live != nil {
		total = total.Add(s.live.Stats())
	}
	return total, s.sessions
}

// collector exposes dispatchStats as Prometheus counters, read at scrape time.
type collector struct {
	stats *dispatchStats

	requests        *prometheus.Desc
	dispatched      *prometheus.Desc
	handlerFailures *prometheus.Desc
	dropped         *prometheus.Desc
	rejected        *prometheus.Desc
	bytes           *prometheus.Desc
	sessions        *prometheus.Desc
}

func newCollector(stats *dispatchStats) *collector {
	return &collector{
		stats: stats,
		requests: prometheus.NewDesc("simpleserial_requests_total",
			"Requests whose first byte was read", nil, nil),
		dispatched: prometheus.NewDesc("simpleserial_dispatched_total",
			"Requests that reached a handler", nil, nil),
		handlerFailures: prometheus.NewDesc("simpleserial_handler_failures_total",
			"Dispatched requests answered with a non-zero handler status", nil, nil),
		dropped: prometheus.NewDesc("simpleserial_dropped_total",
			"Text requests discarded without a reply", nil, nil),
		rejected: prometheus.NewDesc("simpleserial_rejected_total",
			"Binary requests answered with a protocol status", []string{"status"}, nil),
		bytes: prometheus.NewDesc("simpleserial_bytes_total",
			"Bytes moved over the link", []string{"direction"}, nil),
		sessions: prometheus.NewDesc("simpleserial_sessions_total",
			"Host connections served", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.dispatched
	ch <- c.handlerFailures
	ch <- c.dropped
	ch <- c.rejected
	ch <- c.bytes
	ch <- c.sessions
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	s, sessions := c.stats.snapshot()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.requests, s.Requests)
	counter(c.dispatched, s.Dispatched)
	counter(c.handlerFailures, s.HandlerFailures)
	counter(c.dropped, s.Dropped)
	counter(c.bytes, s.BytesIn, "in")
	counter(c.bytes, s.BytesOut, "out")
	counter(c.sessions, sessions)

	for i, n := range s.Rejected {
		status := wire.Status(i)
		if !status.IsProtocol() {
			continue
		}
		counter(c.rejected, n, status.String())
	}
}

// metricsHandler serves the /metrics endpoint of a private registry.
func metricsHandler(stats *dispatchStats) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(newCollector(stats))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}
