package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mirkobrombin/go-gate/v1/eventbus"
	"github.com/mirkobrombin/go-gate/v1/watchbus"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the time source used for admission and staleness
// decisions. Tests use it to control the clock.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.clock = now
	}
}

// WithBus sets the event bus on which release signals are published so
// waiting callers can re-attempt immediately.
func WithBus(bus eventbus.Bus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithWatch sets the watch bus on which lock lifecycle events are
// published for observers.
func WithWatch(bus watchbus.WatchBus) Option {
	return func(c *Coordinator) {
		c.watch = bus
	}
}

// WithReleaseAttempts bounds the re-read-and-retry loop a Release runs on
// write conflicts. A non-positive value keeps the default.
func WithReleaseAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.releaseAttempts = n
		}
	}
}

// WithTracing enables OpenTelemetry spans on Acquire and Release.
func WithTracing() Option {
	return func(c *Coordinator) {
		c.traceEnabled = true
	}
}

// WithMetrics enables Prometheus metrics collection using the provided
// registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Coordinator) {
		m := &counters{
			acquiredC: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "gate_acquired_total",
				Help: "Total number of successful lock acquisitions",
			}),
			rejectedC: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "gate_rejected_total",
				Help: "Total number of acquire attempts rejected at the concurrency ceiling",
			}),
			conflictC: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "gate_conflicts_total",
				Help: "Total number of conditional writes lost to a concurrent caller",
			}),
			releasedC: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "gate_released_total",
				Help: "Total number of lock releases",
			}),
			reclaimedC: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "gate_stale_reclaimed_total",
				Help: "Total number of stale lock records reclaimed during acquires",
			}),
		}
		reg.MustRegister(m.acquiredC, m.rejectedC, m.conflictC, m.releasedC, m.reclaimedC)
		c.metrics = m
	}
}

type counters struct {
	acquiredC  prometheus.Counter
	rejectedC  prometheus.Counter
	conflictC  prometheus.Counter
	releasedC  prometheus.Counter
	reclaimedC prometheus.Counter
}

func (m *counters) acquired() {
	if m != nil {
		m.acquiredC.Inc()
	}
}

func (m *counters) rejected() {
	if m != nil {
		m.rejectedC.Inc()
	}
}

func (m *counters) conflict() {
	if m != nil {
		m.conflictC.Inc()
	}
}

func (m *counters) released() {
	if m != nil {
		m.releasedC.Inc()
	}
}

func (m *counters) reclaimed(n int) {
	if m != nil {
		m.reclaimedC.Add(float64(n))
	}
}
