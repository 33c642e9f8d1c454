package pool

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds one pool's counters in a private registry, mirroring
// db-bouncer's metrics.Collector: each pool gets its own
// prometheus.Registry so that tests (or multiple pools in one process)
// never collide on metric registration.
type Metrics struct {
	Registry  *prometheus.Registry
	Acquired  prometheus.Counter
	Released  prometheus.Counter
	Discarded prometheus.Counter
	WaitCount prometheus.Counter
}

// NewMetrics builds a fresh, privately-registered Metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Acquired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sqly_pool_acquired_total",
			Help: "Connections handed out by Acquire.",
		}),
		Released: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sqly_pool_released_total",
			Help: "Connections returned to the idle free-list.",
		}),
		Discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sqly_pool_discarded_total",
			Help: "Connections discarded because cleanup found them Broken.",
		}),
		WaitCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sqly_pool_wait_total",
			Help: "Acquire calls that had to wait for a connection to free up.",
		}),
	}
	reg.MustRegister(m.Acquired, m.Released, m.Discarded, m.WaitCount)
	return m
}
