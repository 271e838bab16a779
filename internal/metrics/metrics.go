// Package metrics holds the Prometheus collectors shared by contexts and
// backing stores. Collectors are package-level, so they count across every
// manager in the process; Register exposes them on a registry.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var SaveHops = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "objgraph",
	Subsystem: "context",
	Name:      "save_hops_total",
	Help:      "Save steps that moved a change set one level up, by level and result.",
}, []string{"level", "result"})

var Fetches = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "objgraph",
	Subsystem: "context",
	Name:      "fetches_total",
	Help:      "Fetch requests, by entity and whether pagination reached the store.",
}, []string{"entity", "path"})

var QueuedTasks = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "objgraph",
	Subsystem: "queue",
	Name:      "tasks",
	Help:      "Tasks waiting on context queues.",
})

var StoreDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "objgraph",
	Subsystem: "store",
	Name:      "op_duration_seconds",
	Help:      "Backing store call latency.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
}, []string{"driver", "op"})

var StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "objgraph",
	Subsystem: "store",
	Name:      "errors_total",
	Help:      "Backing store calls that failed.",
}, []string{"driver", "op"})

// Collectors lists every collector in this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{SaveHops, Fetches, QueuedTasks, StoreDuration, StoreErrors}
}

// Register adds the collectors to reg. Collectors already registered there
// are skipped, so several managers may share one registry.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveStore records one backing store call that started at start.
func ObserveStore(driver, op string, start time.Time, err error) {
	StoreDuration.WithLabelValues(driver, op).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(driver, op).Inc()
	}
}
