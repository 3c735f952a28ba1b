// Package metrics exposes job lifecycle, batch and storage metrics in the
// prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"annotation-service/internal/entity"
)

const namespace = "annotation"

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	jobsAssigned    *prometheus.CounterVec
	jobsClosed      *prometheus.CounterVec
	jobsInterrupted prometheus.Counter
	batchFlushes    prometheus.Counter
	batchOps        prometheus.Histogram
	batchBytes      prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsAssigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "assigned_total",
			Help:      "Jobs handed to a user, by objective.",
		}, []string{"objective"}),
		jobsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "closed_total",
			Help:      "Jobs closed, by the status the item moved to.",
		}, []string{"status"}),
		jobsInterrupted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "interrupted_total",
			Help:      "Job timers paused by users or the idle reaper.",
		}),
		batchFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "flushes_total",
		}),
		batchOps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "ops",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		batchBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsAssigned,
		m.jobsClosed,
		m.jobsInterrupted,
		m.batchFlushes,
		m.batchOps,
		m.batchBytes,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Register adds extra collectors (e.g. a PebbleCollector).
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) JobAssigned(objective entity.Status) {
	m.jobsAssigned.WithLabelValues(string(objective)).Inc()
}

func (m *Metrics) JobClosed(status entity.Status) {
	m.jobsClosed.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) JobInterrupted() {
	m.jobsInterrupted.Inc()
}

// BatchFlushed matches storage.FlushObserver.
func (m *Metrics) BatchFlushed(ops, bytes int) {
	m.batchFlushes.Inc()
	m.batchOps.Observe(float64(ops))
	m.batchBytes.Observe(float64(bytes))
}

// ObserveRequest records one served HTTP request. route is the chi route
// pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
