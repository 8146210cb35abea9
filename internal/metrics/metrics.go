// Package metrics exports sync driver activity to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spesesync/internal/core"
	"spesesync/internal/syncer"
)

const namespace = "spese"

// SyncMetrics collects sync pass outcomes. It is a syncer.Listener.
type SyncMetrics struct {
	registry *prometheus.Registry

	passes   *prometheus.CounterVec
	applied  prometheus.Counter
	duration prometheus.Histogram
	queueLen prometheus.Gauge
	status   prometheus.Gauge
}

var _ syncer.Listener = (*SyncMetrics)(nil)

// NewSyncMetrics registers the collectors on a private registry, along with
// the Go runtime and process collectors.
func NewSyncMetrics() *SyncMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &SyncMetrics{
		registry: reg,
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Sync passes by outcome (success, failure)",
		}, []string{"outcome"}),
		applied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "actions_applied_total",
			Help:      "Pending actions accepted by the remote store",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a sync pass",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		queueLen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending_actions",
			Help:      "Actions waiting in the offline queue",
		}),
		status: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "status",
			Help:      "Current sync status (0 idle, 1 syncing, 2 done)",
		}),
	}
}

func (m *SyncMetrics) OnSyncEvent(_ context.Context, ev syncer.Event) {
	m.status.Set(float64(ev.Status))
	m.queueLen.Set(float64(ev.QueueLen))

	if ev.Status != core.SyncDone || ev.Pass == nil {
		return
	}
	outcome := "success"
	if !ev.Pass.Succeeded() {
		outcome = "failure"
	}
	m.passes.WithLabelValues(outcome).Inc()
	m.applied.Add(float64(ev.Pass.Applied))
	m.duration.Observe(ev.Pass.Duration.Seconds())
}

// ObserveQueue sets the queue depth outside of a sync pass, for example
// after a local mutation.
func (m *SyncMetrics) ObserveQueue(n int) {
	m.queueLen.Set(float64(n))
}

func (m *SyncMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
