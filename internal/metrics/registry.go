// Package metrics exposes the daemon's ambient Prometheus metrics, in the
// style of the donor's internal/metrics package (a process-wide registry
// built with promauto), narrowed from firewall/NAT/DNS counters to the
// handful of gauges/counters this daemon's supervisor loop can exercise.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every metric this daemon emits.
type Registry struct {
	TicksTotal       *prometheus.CounterVec
	TickErrorsTotal  *prometheus.CounterVec
	PetsTracked      prometheus.Gauge
	RelationshipsTotal prometheus.Gauge
}

var (
	once     sync.Once
	registry *Registry
)

// Get returns the process-wide registry, creating it on first use.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}
	r.TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanpets",
		Name:      "worker_ticks_total",
		Help:      "Number of completed worker ticks, by worker name.",
	}, []string{"worker"})
	r.TickErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lanpets",
		Name:      "worker_tick_errors_total",
		Help:      "Number of worker ticks that returned an error, by worker name.",
	}, []string{"worker"})
	r.PetsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lanpets",
		Name:      "pets_tracked",
		Help:      "Current number of non-deleted pets.",
	})
	r.RelationshipsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lanpets",
		Name:      "relationships_total",
		Help:      "Current number of pet relationship edges.",
	})
	return r
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
